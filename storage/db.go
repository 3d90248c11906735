// Package storage persists ledger state: a generic key-value layer with
// LevelDB, Badger and in-memory backends, the UTXO state buffer and the
// block store.
package storage

import (
	"fmt"
	"strings"

	"github.com/decred/slog"
)

// DB is the generic key-value store interface. Get returns core.ErrNotFound
// for absent keys.
type DB interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	NewIterator(prefix []byte) Iterator
	NewBatch() Batch
	Close() error
}

// Iterator walks key-value pairs matching a prefix in key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// Batch buffers writes and applies them atomically on Write.
type Batch interface {
	Set(key, value []byte)
	Delete(key []byte)
	Reset()
	Write() error
}

// Backend names accepted by Open.
const (
	BackendLevelDB = "leveldb"
	BackendBadger  = "badger"
	BackendMemory  = "memory"
)

// Open opens the named backend at path. The memory backend ignores path.
func Open(backend, path string, log slog.Logger) (DB, error) {
	switch strings.ToLower(backend) {
	case BackendLevelDB, "":
		return NewLevelDB(path)
	case BackendBadger:
		return NewBadgerDB(path, log)
	case BackendMemory:
		return NewMemDB(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
