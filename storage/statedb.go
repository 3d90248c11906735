package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated by registerPrefix() below.
var statePrefixes []string

var (
	prefixBox  = registerPrefix("box:")
	prefixAddr = registerPrefix("addr:")
)

func boxKey(id string) string { return prefixBox + id }

func addrKey(addr crypto.Address, id string) string {
	return prefixAddr + string(addr) + ":" + id
}

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB is the unspent box set on top of a DB, with an in-memory write
// buffer, snapshot/rollback, and deterministic state-root computation.
// It is not safe for concurrent use; the ledger serialises access.
type StateDB struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

func (s *StateDB) get(key string) ([]byte, error) {
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	delete(s.deleted, key)
	s.dirty[key] = val
}

func (s *StateDB) del(key string) {
	delete(s.dirty, key)
	s.deleted[key] = true
}

// scan returns the merged view of every key under prefix, persisted or
// buffered, in key order.
func (s *StateDB) scan(prefix string) (map[string][]byte, []string, error) {
	merged := make(map[string][]byte)
	it := s.db.NewIterator([]byte(prefix))
	for it.Next() {
		merged[string(it.Key())] = bytes.Clone(it.Value())
	}
	it.Release()
	if err := it.Error(); err != nil {
		return nil, nil, err
	}
	for k, v := range s.dirty {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	for k := range s.deleted {
		delete(merged, k)
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return merged, keys, nil
}

// ---- Boxes ----

// GetBox returns the unspent box id, or core.ErrNotFound.
func (s *StateDB) GetBox(id string) (*box.Raw, error) {
	data, err := s.get(boxKey(id))
	if err != nil {
		return nil, err
	}
	var raw box.Raw
	if err := cramberry.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode box %s: %w", id, err)
	}
	return &raw, nil
}

// HasBox reports whether id is unspent.
func (s *StateDB) HasBox(id string) bool {
	_, err := s.get(boxKey(id))
	return err == nil
}

// PutBox adds raw to the unspent set and indexes it by address.
func (s *StateDB) PutBox(raw *box.Raw) error {
	if raw.ID == "" {
		return errors.New("box without id")
	}
	data, err := cramberry.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode box %s: %w", raw.ID, err)
	}
	s.set(boxKey(raw.ID), data)
	s.set(addrKey(crypto.AddressOf(raw.Proposition), raw.ID), []byte{})
	return nil
}

// SpendBox removes id from the unspent set and returns it.
func (s *StateDB) SpendBox(id string) (*box.Raw, error) {
	raw, err := s.GetBox(id)
	if err != nil {
		return nil, err
	}
	s.del(boxKey(id))
	s.del(addrKey(crypto.AddressOf(raw.Proposition), id))
	return raw, nil
}

// BoxesFor returns the unspent boxes guarded by addr, ordered by id.
func (s *StateDB) BoxesFor(addr crypto.Address) ([]*box.Raw, error) {
	prefix := prefixAddr + string(addr) + ":"
	_, keys, err := s.scan(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]*box.Raw, 0, len(keys))
	for _, k := range keys {
		raw, err := s.GetBox(strings.TrimPrefix(k, prefix))
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() int {
	snap := stateSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		snap.dirty[k] = bytes.Clone(v)
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		dirty[k] = bytes.Clone(v)
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// Discard drops the write buffer and every snapshot.
func (s *StateDB) Discard() {
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
}

// ComputeRoot returns the deterministic hash of the complete state: every
// persisted entry under the known prefixes merged with the write buffer,
// sorted, and hashed with length-prefix encoding. It does not flush.
func (s *StateDB) ComputeRoot() (string, error) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, prefix := range statePrefixes {
		merged, keys, err := s.scan(prefix)
		if err != nil {
			return "", err
		}
		for _, k := range keys {
			v := merged[k]
			binary.BigEndian.PutUint32(lenBuf[:], uint32(len(k)))
			buf.Write(lenBuf[:])
			buf.WriteString(k)
			binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
			buf.Write(lenBuf[:])
			buf.Write(v)
		}
	}
	return crypto.Hash(buf.Bytes()), nil
}

// Commit atomically flushes the write buffer to the underlying DB and then
// clears it.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.Discard()
	return nil
}
