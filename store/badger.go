package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"
)

const badgerMapPrefix = "map/"

// badgerDocuments stores each map as a JSON value under "map/<id>".
type badgerDocuments struct {
	db *badger.DB
}

// badgerLogger adapts zap to the badger.Logger interface.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (bl *badgerLogger) Errorf(msg string, items ...any)   { bl.sugar.Errorf(msg, items...) }
func (bl *badgerLogger) Warningf(msg string, items ...any) { bl.sugar.Warnf(msg, items...) }
func (bl *badgerLogger) Infof(msg string, items ...any)    { bl.sugar.Infof(msg, items...) }
func (bl *badgerLogger) Debugf(msg string, items ...any)   { bl.sugar.Debugf(msg, items...) }

// NewBadgerStore opens a BadgerDB database in dir. With inMemory set, dir is
// ignored and nothing touches the disk.
func NewBadgerStore(dir string, inMemory bool, logger *zap.Logger) (Store, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(dir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Logger = &badgerLogger{sugar: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return newDocumentStore(&badgerDocuments{db: db}), nil
}

func badgerKey(id string) []byte {
	return []byte(badgerMapPrefix + id)
}

func (b *badgerDocuments) close() error {
	return b.db.Close()
}

func (b *badgerDocuments) load(_ context.Context, id string) (*mapDocument, error) {
	var doc *mapDocument
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			doc = &mapDocument{}
			return json.Unmarshal(val, doc)
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (b *badgerDocuments) loadAll(_ context.Context) ([]mapDocument, error) {
	result := []mapDocument{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerMapPrefix)
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				var doc mapDocument
				if err := json.Unmarshal(val, &doc); err != nil {
					return err
				}
				result = append(result, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *badgerDocuments) save(_ context.Context, doc mapDocument) error {
	val, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(doc.ID), val)
	})
}

func (b *badgerDocuments) remove(_ context.Context, id string) (bool, error) {
	existed := false
	err := b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		return txn.Delete(badgerKey(id))
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}
