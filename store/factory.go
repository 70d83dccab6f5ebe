package store

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Mongo   MongoOptions
	// File is the JSON file used by the "file" backend.
	File string
	// DataDir holds the sqlite and badger databases.
	DataDir string
}

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"file"    - single JSON file at opts.File (default)
//	"mongodb" - MongoDB collection described by opts.Mongo
//	"sqlite"  - SQLite database at DataDir/maps.db
//	"badger"  - BadgerDB database in DataDir/badger
//	"memory"  - In-memory (ephemeral, for testing)
func New(ctx context.Context, opts Options, logger *zap.Logger) (Store, error) {
	switch opts.Backend {
	case "file", "":
		return NewJsonFileStore(opts.File)
	case "mongodb":
		return NewMongoStore(ctx, opts.Mongo, logger)
	case "sqlite":
		return NewSqliteStore(filepath.Join(opts.DataDir, "maps.db"))
	case "badger":
		return NewBadgerStore(filepath.Join(opts.DataDir, "badger"), false, logger)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: file, mongodb, sqlite, badger, memory)", opts.Backend)
	}
}
