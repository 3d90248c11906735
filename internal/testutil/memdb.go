// Package testutil provides fixtures and in-memory storage for tests across
// the module. Never import this in production code.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/storage"
)

// NewStateDB returns a storage.StateDB backed by a fresh MemDB.
func NewStateDB() *storage.StateDB {
	return storage.NewStateDB(storage.NewMemDB())
}

// Seed commits boxes to a fresh in-memory state.
func Seed(t testing.TB, boxes ...*box.Box) *storage.StateDB {
	t.Helper()
	st := NewStateDB()
	for _, b := range boxes {
		require.NoError(t, st.PutBox(box.Encode(b)))
	}
	require.NoError(t, st.Commit())
	return st
}
