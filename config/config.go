// Package config defines the server's command-line flags, each of which can
// also be set through an environment variable.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v2"

	"github.com/fjperezpujalte/storiesviewer/store"
)

// Config holds all application configuration.
type Config struct {
	// Storage
	StorageType     string `validate:"oneof=file mongodb sqlite badger memory"`
	MongoURL        string `validate:"required_if=StorageType mongodb"`
	MongoDatabase   string `validate:"required_if=StorageType mongodb"`
	MongoCollection string `validate:"required_if=StorageType mongodb"`
	StorageFile     string `validate:"required_if=StorageType file"`
	DataDir         string `validate:"required_if=StorageType sqlite,required_if=StorageType badger"`

	// HTTP server
	Host            string
	Port            int           `validate:"min=1,max=65535"`
	AllowedOrigins  []string      `validate:"min=1,dive,required"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	// Logging
	LogLevel    string `validate:"oneof=debug info warn error"`
	Environment string `validate:"oneof=development production"`
}

// Flags returns the CLI flags understood by FromContext.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "storage-type",
			Usage:   "Storage backend (file, mongodb, sqlite, badger, memory)",
			Value:   "file",
			EnvVars: []string{"STORAGE_TYPE"},
		},
		&cli.StringFlag{
			Name:    "mongodb-url",
			Usage:   "MongoDB connection string",
			Value:   "mongodb://localhost:27017",
			EnvVars: []string{"MONGODB_URL"},
		},
		&cli.StringFlag{
			Name:    "mongodb-database",
			Usage:   "MongoDB database name",
			Value:   "maps_db",
			EnvVars: []string{"MONGODB_DATABASE"},
		},
		&cli.StringFlag{
			Name:    "mongodb-collection",
			Usage:   "MongoDB collection holding map documents",
			Value:   "maps",
			EnvVars: []string{"MONGODB_COLLECTION"},
		},
		&cli.StringFlag{
			Name:    "storage-file",
			Usage:   "JSON file used by the file backend",
			Value:   "maps_data.json",
			EnvVars: []string{"STORAGE_FILE"},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Usage:   "Directory for the sqlite and badger backends",
			Value:   "./data",
			EnvVars: []string{"DATA_DIR"},
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "Address to listen on",
			Value:   "0.0.0.0",
			EnvVars: []string{"API_HOST"},
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to listen on",
			Value:   8000,
			EnvVars: []string{"API_PORT"},
		},
		&cli.StringSliceFlag{
			Name:    "allowed-origins",
			Usage:   "CORS allowed origins, comma separated (* allows any)",
			Value:   cli.NewStringSlice("*"),
			EnvVars: []string{"ALLOWED_ORIGINS"},
		},
		&cli.DurationFlag{
			Name:    "shutdown-timeout",
			Usage:   "Time allowed for in-flight requests on shutdown",
			Value:   15 * time.Second,
			EnvVars: []string{"SHUTDOWN_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Aliases: []string{"l"},
			Usage:   "Set logging level (debug, info, warn, error)",
			Value:   "info",
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "Deployment environment (development, production)",
			Value:   "development",
			EnvVars: []string{"ENVIRONMENT"},
		},
	}
}

// FromContext reads and validates the configuration from parsed flags.
func FromContext(c *cli.Context) (*Config, error) {
	cfg := &Config{
		StorageType:     c.String("storage-type"),
		MongoURL:        c.String("mongodb-url"),
		MongoDatabase:   c.String("mongodb-database"),
		MongoCollection: c.String("mongodb-collection"),
		StorageFile:     c.String("storage-file"),
		DataDir:         c.String("data-dir"),
		Host:            c.String("host"),
		Port:            c.Int("port"),
		AllowedOrigins:  c.StringSlice("allowed-origins"),
		ShutdownTimeout: c.Duration("shutdown-timeout"),
		LogLevel:        c.String("log-level"),
		Environment:     c.String("environment"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Addr is the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// StoreOptions maps the storage settings onto store.Options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend: c.StorageType,
		Mongo: store.MongoOptions{
			URI:        c.MongoURL,
			Database:   c.MongoDatabase,
			Collection: c.MongoCollection,
		},
		File:    c.StorageFile,
		DataDir: c.DataDir,
	}
}
