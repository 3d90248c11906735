package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/decred/slog"
	"github.com/dgraph-io/badger"

	"github.com/tolelom/tolgame/core"
)

// BadgerDB implements DB using Badger.
type BadgerDB struct {
	db *badger.DB
}

// NewBadgerDB opens (or creates) a Badger database in dir. Badger's own
// messages go to log, or nowhere when log is nil.
func NewBadgerDB(dir string, log slog.Logger) (*BadgerDB, error) {
	if log == nil {
		log = slog.Disabled
	}
	opts := badger.DefaultOptions(dir).WithTruncate(true).WithLogger(badgerLogger{log})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", dir, err)
	}
	return &BadgerDB{db: db}, nil
}

func (d *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrNotFound
	}
	return val, err
}

func (d *BadgerDB) Set(key, value []byte) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(bytes.Clone(key), bytes.Clone(value))
	})
}

func (d *BadgerDB) Delete(key []byte) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(bytes.Clone(key))
	})
}

// NewIterator reads the matching pairs inside one read transaction and
// serves them from memory.
func (d *BadgerDB) NewIterator(prefix []byte) Iterator {
	it := &sliceIter{idx: -1}
	it.err = d.db.View(func(txn *badger.Txn) error {
		bi := txn.NewIterator(badger.DefaultIteratorOptions)
		defer bi.Close()
		for bi.Seek(prefix); bi.ValidForPrefix(prefix); bi.Next() {
			item := bi.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			it.pairs = append(it.pairs, kv{k: item.KeyCopy(nil), v: v})
		}
		return nil
	})
	return it
}

func (d *BadgerDB) NewBatch() Batch {
	return &badgerBatch{db: d.db}
}

func (d *BadgerDB) Close() error {
	return d.db.Close()
}

type badgerBatch struct {
	db  *badger.DB
	ops []batchOp
}

func (b *badgerBatch) Set(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), value: bytes.Clone(value)})
}

func (b *badgerBatch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), del: true})
}

func (b *badgerBatch) Reset() { b.ops = nil }

func (b *badgerBatch) Write() error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			var err error
			if op.del {
				err = txn.Delete(op.key)
			} else {
				err = txn.Set(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// badgerLogger routes badger's logger to slog.
type badgerLogger struct{ log slog.Logger }

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.log.Errorf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warnf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.log.Debugf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.log.Tracef(f, v...) }
