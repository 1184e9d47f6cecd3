package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// badgerLoggerAdapter adapts slog.Logger to the badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// BadgerOptions configures a Badger store.
type BadgerOptions struct {
	// Path is the database directory; it is created when missing.
	Path string
	// InMemory keeps the database in memory and ignores Path.
	InMemory bool
	// TTL expires entries. 0 keeps them forever.
	TTL time.Duration

	Logger *slog.Logger
}

// Badger is a Store on an embedded badger database.
type Badger struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadger opens or creates a badger store.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var bo badger.Options
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("badger store needs a path or in-memory mode")
		}
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating badger directory: %w", err)
		}
		bo = badger.DefaultOptions(opts.Path)
	}
	bo.Logger = &badgerLoggerAdapter{logger: logger}
	bo.Compression = options.None

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return &Badger{db: db, ttl: opts.TTL}, nil
}

func (b *Badger) Get(_ context.Context, key string) (string, bool, error) {
	if b.db.IsClosed() {
		return "", false, ErrClosed
	}

	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("badger get %q: %w", key, err)
	}
	return string(val), true, nil
}

func (b *Badger) Set(_ context.Context, key, value string) error {
	if b.db.IsClosed() {
		return ErrClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), []byte(value))
		if b.ttl > 0 {
			e = e.WithTTL(b.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("badger set %q: %w", key, err)
	}
	return nil
}

func (b *Badger) Remove(_ context.Context, key string) error {
	if b.db.IsClosed() {
		return ErrClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger remove %q: %w", key, err)
	}
	return nil
}

func (b *Badger) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	return b.db.Close()
}
