package storage

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tolelom/tolgame/core"
)

// BlockStore keeps encoded blocks by hash with a height index and the tip.
type BlockStore struct {
	db DB
}

// NewBlockStore wraps db as a BlockStore.
func NewBlockStore(db DB) *BlockStore {
	return &BlockStore{db: db}
}

func heightKey(height int64) []byte {
	return []byte("height:" + strconv.FormatInt(height, 10))
}

// PutBlock stores data under hash, indexes it at height and moves the tip,
// in one batch.
func (s *BlockStore) PutBlock(hash string, height int64, data []byte) error {
	b := s.db.NewBatch()
	b.Set([]byte("block:"+hash), data)
	b.Set(heightKey(height), []byte(hash))
	b.Set([]byte("chain:tip"), []byte(hash))
	return b.Write()
}

// GetBlock returns the encoded block with hash.
func (s *BlockStore) GetBlock(hash string) ([]byte, error) {
	return s.db.Get([]byte("block:" + hash))
}

// GetBlockByHeight returns the encoded block at height.
func (s *BlockStore) GetBlockByHeight(height int64) ([]byte, error) {
	hash, err := s.db.Get(heightKey(height))
	if err != nil {
		return nil, fmt.Errorf("block at height %d: %w", height, err)
	}
	return s.GetBlock(string(hash))
}

// Tip returns the hash of the latest block, or "" for an empty store.
func (s *BlockStore) Tip() (string, error) {
	val, err := s.db.Get([]byte("chain:tip"))
	if errors.Is(err, core.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(val), nil
}
