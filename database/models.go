package database

import "time"

// Model carries the integer primary key and creation time shared by the
// clinical tables.
type Model struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
