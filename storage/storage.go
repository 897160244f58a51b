package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Open and Stat for a missing key.
var ErrNotFound = errors.New("storage: object not found")

// Object describes a stored object.
type Object struct {
	Key      string
	Size     int64
	Modified time.Time
}

// Storage is scratch space for uploaded audio. Keys are slash separated.
// Objects are short lived: the upload path removes them once transcribed.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove is a no-op for a missing key.
	Remove(ctx context.Context, key string) error
	Stat(ctx context.Context, key string) (Object, error)
	List(ctx context.Context, prefix string) ([]Object, error)
}

// LocalPather is implemented by backends whose objects are plain files.
type LocalPather interface {
	LocalPath(key string) string
}

// Sweep removes objects under prefix last modified before cutoff and
// returns how many it removed. It keeps going past individual failures.
func Sweep(ctx context.Context, s Storage, prefix string, cutoff time.Time) (int, error) {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	var (
		removed int
		errs    []error
	)
	for _, obj := range objects {
		if !obj.Modified.Before(cutoff) {
			continue
		}
		if err := s.Remove(ctx, obj.Key); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
