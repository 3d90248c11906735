// Package indexer keeps game NFT lookups over committed boxes so clients can
// find a game and its participations without scanning contract addresses.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/decred/slog"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/events"
	"github.com/tolelom/tolgame/game"
	"github.com/tolelom/tolgame/storage"
)

const (
	prefixGame          = "idx:game:"
	prefixParticipation = "idx:part:"
)

// Indexer subscribes to box events and maps each game NFT to its current
// game box and unspent participations.
type Indexer struct {
	mu    sync.Mutex
	db    storage.DB
	chain core.Chain
	log   slog.Logger
}

var _ core.GameLocator = (*Indexer)(nil)

// New creates an Indexer backed by db that resolves box ids through chain,
// and subscribes it to emitter.
func New(db storage.DB, chain core.Chain, emitter *events.Emitter, log slog.Logger) *Indexer {
	if log == nil {
		log = slog.Disabled
	}
	idx := &Indexer{db: db, chain: chain, log: log}
	if emitter != nil {
		emitter.Subscribe(events.EventBoxCreated, idx.onBoxCreated)
		emitter.Subscribe(events.EventBoxSpent, idx.onBoxSpent)
	}
	return idx
}

// Rebuild replaces the index with the protocol boxes currently unspent on
// chain.
func (idx *Indexer) Rebuild(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, prefix := range []string{prefixGame, prefixParticipation} {
		it := idx.db.NewIterator([]byte(prefix))
		var keys [][]byte
		for it.Next() {
			keys = append(keys, bytes.Clone(it.Key()))
		}
		it.Release()
		for _, k := range keys {
			if err := idx.db.Delete(k); err != nil {
				return err
			}
		}
	}
	for _, prop := range [][]byte{game.GameContract, game.ParticipationContract} {
		raws, err := idx.chain.UnspentOutputsFor(ctx, crypto.AddressOf(prop))
		if err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
		for _, raw := range raws {
			idx.add(raw)
		}
	}
	return nil
}

// GameBoxByNFT returns the unspent game box carrying nftID.
func (idx *Indexer) GameBoxByNFT(ctx context.Context, nftID string) (*box.Raw, error) {
	idx.mu.Lock()
	id, err := idx.db.Get([]byte(prefixGame + nftID))
	idx.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return idx.chain.BoxByID(ctx, string(id))
}

// ParticipationsByNFT returns the unspent participation boxes of nftID.
func (idx *Indexer) ParticipationsByNFT(ctx context.Context, nftID string) ([]*box.Raw, error) {
	idx.mu.Lock()
	ids, err := idx.getList(prefixParticipation + nftID)
	idx.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]*box.Raw, 0, len(ids))
	for _, id := range ids {
		raw, err := idx.chain.BoxByID(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

// ---- event handlers ----

func (idx *Indexer) onBoxCreated(ev events.Event) {
	raw, _ := ev.Data["box"].(*box.Raw)
	if raw == nil {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.add(raw)
}

func (idx *Indexer) onBoxSpent(ev events.Event) {
	raw, _ := ev.Data["box"].(*box.Raw)
	if raw == nil {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	switch {
	case bytes.Equal(raw.Proposition, game.GameContract):
		if len(raw.Tokens) != 1 {
			return
		}
		key := []byte(prefixGame + raw.Tokens[0].ID)
		if cur, err := idx.db.Get(key); err == nil && string(cur) == raw.ID {
			idx.check(idx.db.Delete(key))
		}
	case bytes.Equal(raw.Proposition, game.ParticipationContract):
		p, err := game.DecodeParticipationRaw(raw)
		if err != nil {
			return
		}
		idx.check(idx.removeFromList(prefixParticipation+p.GameNFTID, raw.ID))
	}
}

func (idx *Indexer) add(raw *box.Raw) {
	switch {
	case bytes.Equal(raw.Proposition, game.GameContract):
		g, err := game.DecodeGameRaw(raw)
		if err != nil {
			idx.log.Warnf("Not indexing game box %s: %v", raw.ID, err)
			return
		}
		idx.check(idx.db.Set([]byte(prefixGame+g.NFTID), []byte(raw.ID)))
	case bytes.Equal(raw.Proposition, game.ParticipationContract):
		p, err := game.DecodeParticipationRaw(raw)
		if err != nil {
			idx.log.Warnf("Not indexing participation %s: %v", raw.ID, err)
			return
		}
		idx.check(idx.addToList(prefixParticipation+p.GameNFTID, raw.ID))
	}
}

func (idx *Indexer) check(err error) {
	if err != nil {
		idx.log.Errorf("Index write failed: %v", err)
	}
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) addToList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == value {
			return nil
		}
	}
	ids = append(ids, value)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Indexer) removeFromList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return err
	}
	filtered := ids[:0]
	for _, id := range ids {
		if id != value {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) == 0 {
		return idx.db.Delete([]byte(key))
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
