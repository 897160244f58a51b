// Package config loads service configuration with Viper.
//
// LoadConfig reads cmd/<service>/config.yml (or config/config.yml), loads a
// .env file through godotenv, and binds every key of the target struct to
// the environment, so DICTATION_DATABASE_DSN or DATABASE_DSN sets
// database.dsn. Application config structs embed ServiceConfig and expose
// ApplyDefaults and Validate.
package config
