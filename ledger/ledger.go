// Package ledger is a single-producer development UTXO ledger. It validates
// transactions with the game rules, keeps them in a mempool and applies them
// in blocks on a fixed interval.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/events"
	"github.com/tolelom/tolgame/game"
	"github.com/tolelom/tolgame/storage"
)

const defaultMaxBlockTxs = 500

// Options configures a Ledger.
type Options struct {
	DB       storage.DB
	Params   game.Params
	Proposer crypto.PrivateKey
	// FeeCollector receives the fees of each block. Without one fees are
	// burned.
	FeeCollector crypto.PublicKey
	ChainID      string
	// Alloc maps compressed pubkey hex to the genesis value it owns.
	Alloc       map[string]uint64
	MaxBlockTxs int
	MempoolSize int
	Emitter     *events.Emitter
	Log         slog.Logger
}

// Ledger implements core.Chain over local storage.
type Ledger struct {
	mu       sync.Mutex
	state    *storage.StateDB
	chain    *Blockchain
	pool     *Mempool
	params   game.Params
	proposer crypto.PrivateKey
	feeTo    []byte
	maxTxs   int
	emitter  *events.Emitter
	log      slog.Logger
}

var _ core.Chain = (*Ledger)(nil)

// New opens the ledger stored in opts.DB, writing the genesis block on a
// fresh store.
func New(opts Options) (*Ledger, error) {
	if opts.DB == nil {
		return nil, errors.New("ledger needs a database")
	}
	if len(opts.Proposer) == 0 {
		return nil, errors.New("ledger needs a proposer key")
	}
	if opts.Params == (game.Params{}) {
		opts.Params = game.DefaultParams()
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxBlockTxs <= 0 {
		opts.MaxBlockTxs = defaultMaxBlockTxs
	}
	log := opts.Log
	if log == nil {
		log = slog.Disabled
	}
	l := &Ledger{
		state:    storage.NewStateDB(opts.DB),
		chain:    NewBlockchain(storage.NewBlockStore(opts.DB)),
		pool:     NewMempool(opts.MempoolSize),
		params:   opts.Params,
		proposer: opts.Proposer,
		maxTxs:   opts.MaxBlockTxs,
		emitter:  opts.Emitter,
		log:      log,
	}
	if len(opts.FeeCollector) > 0 {
		l.feeTo = crypto.P2PK(opts.FeeCollector)
	}
	if err := l.chain.Init(); err != nil {
		return nil, err
	}
	if l.chain.Tip() == nil {
		if err := l.writeGenesis(opts.ChainID, opts.Alloc); err != nil {
			return nil, fmt.Errorf("genesis: %w", err)
		}
	}
	log.Infof("Ledger at height %d, tip %s", l.chain.Height(), l.chain.Tip().Hash)
	return l, nil
}

// writeGenesis creates one P2PK box per allocation in block 0.
func (l *Ledger) writeGenesis(chainID string, alloc map[string]uint64) error {
	keys := make([]string, 0, len(alloc))
	for k := range alloc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		pub, err := crypto.PubKeyFromHex(k)
		if err != nil {
			return fmt.Errorf("alloc %s: %w", k, err)
		}
		raw := &box.Raw{
			ID:          box.ComputeID("genesis", uint32(i)),
			TxID:        "genesis",
			Index:       uint32(i),
			Value:       alloc[k],
			Proposition: crypto.P2PK(pub),
		}
		if err := l.state.PutBox(raw); err != nil {
			return err
		}
	}
	root, err := l.state.ComputeRoot()
	if err != nil {
		return err
	}
	block := NewBlock(0, GenesisHash, l.proposer.Public().Hex(), nil, nil)
	block.Header.StateRoot = root
	block.Header.TxRoot = crypto.Hash([]byte(chainID))
	if err := block.Sign(l.proposer); err != nil {
		return err
	}
	if err := l.chain.AddBlock(block); err != nil {
		l.state.Discard()
		return err
	}
	return l.state.Commit()
}

// CurrentHeight returns the height of the latest block.
func (l *Ledger) CurrentHeight(context.Context) (int64, error) {
	return l.chain.Height(), nil
}

// UnspentOutputsFor returns the unspent boxes guarded by addr.
func (l *Ledger) UnspentOutputsFor(_ context.Context, addr crypto.Address) ([]*box.Raw, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.BoxesFor(addr)
}

// BoxByID returns an unspent box or core.ErrNotFound.
func (l *Ledger) BoxByID(_ context.Context, id string) (*box.Raw, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.GetBox(id)
}

// BlockByHeight returns a committed block.
func (l *Ledger) BlockByHeight(height int64) (*Block, error) {
	return l.chain.GetBlockByHeight(height)
}

// MempoolSize returns the number of pending transactions.
func (l *Ledger) MempoolSize() int {
	return l.pool.Size()
}

// Submit validates tx for inclusion in the next block and queues it.
// Resubmitting a pending transaction returns its id again.
func (l *Ledger) Submit(ctx context.Context, tx *core.SignedTx) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", core.Transient(err)
	}
	id, err := tx.ID()
	if err != nil {
		return "", core.Permanent(err)
	}

	l.mu.Lock()
	if l.pool.Has(id) {
		l.mu.Unlock()
		return id, nil
	}
	_, err = l.validate(l.state, tx, l.chain.Height()+1)
	if err != nil {
		l.mu.Unlock()
		l.log.Debugf("Rejected tx %s: %v", id, err)
		return "", core.Permanent(err)
	}
	conflict, err := l.pool.Add(id, tx, tx.Body.Inputs)
	l.mu.Unlock()
	if err != nil {
		return "", core.Transient(err)
	}
	if conflict != "" {
		return "", core.Permanent(fmt.Errorf("input claimed by pending tx %s: %w", conflict, ErrDoubleSpend))
	}

	l.log.Debugf("Accepted tx %s (%s)", id, actionName(tx.Body.Action))
	l.emitter.Emit(events.Event{
		Type: events.EventTxAccepted,
		TxID: id,
		Data: map[string]any{"action": string(tx.Body.Action)},
	})
	return id, nil
}

// ProduceBlock applies the pending transactions that are still valid at the
// next height, stores the block and commits the state.
func (l *Ledger) ProduceBlock() (*Block, error) {
	l.mu.Lock()
	block, evs, err := l.produceLocked()
	l.mu.Unlock()
	for _, ev := range evs {
		l.emitter.Emit(ev)
	}
	return block, err
}

func (l *Ledger) produceLocked() (*Block, []events.Event, error) {
	tip := l.chain.Tip()
	height := tip.Header.Height + 1

	var (
		txs      []core.SignedTx
		included []string
		done     []string
		evs      []events.Event
		fees     uint64
	)
	for _, id := range l.pool.Pending(l.maxTxs) {
		stx, ok := l.pool.Get(id)
		if !ok {
			continue
		}
		done = append(done, id)
		snap := l.state.Snapshot()
		applied, fee, err := l.apply(stx, id, height)
		if err == nil {
			fees, err = core.AddValues(fees, fee)
		}
		if err != nil {
			if rerr := l.state.RevertToSnapshot(snap); rerr != nil {
				l.state.Discard()
				return nil, nil, fmt.Errorf("revert after tx %s: %w (revert: %v)", id, err, rerr)
			}
			l.log.Infof("Dropping tx %s at height %d: %v", id, height, err)
			evs = append(evs, events.Event{Type: events.EventTxDropped, TxID: id, BlockHeight: height, Data: map[string]any{"reason": err.Error()}})
			continue
		}
		txs = append(txs, *stx)
		included = append(included, id)
		evs = append(evs, applied...)
		evs = append(evs, events.Event{Type: events.EventTxApplied, TxID: id, BlockHeight: height, Data: map[string]any{"action": string(stx.Body.Action)}})
	}

	if fees > 0 && l.feeTo != nil {
		txID := fmt.Sprintf("fees-%d", height)
		raw := &box.Raw{
			ID:             box.ComputeID(txID, 0),
			TxID:           txID,
			Value:          fees,
			Proposition:    l.feeTo,
			CreationHeight: height,
		}
		if err := l.state.PutBox(raw); err != nil {
			l.state.Discard()
			return nil, nil, err
		}
		evs = append(evs, boxEvent(events.EventBoxCreated, txID, height, raw))
	}

	root, err := l.state.ComputeRoot()
	if err != nil {
		l.state.Discard()
		return nil, nil, err
	}
	block := NewBlock(height, tip.Hash, l.proposer.Public().Hex(), txs, included)
	block.Header.StateRoot = root
	if err := block.Sign(l.proposer); err != nil {
		l.state.Discard()
		return nil, nil, err
	}
	if err := l.chain.AddBlock(block); err != nil {
		l.state.Discard()
		return nil, nil, fmt.Errorf("add block: %w", err)
	}
	if err := l.state.Commit(); err != nil {
		l.log.Criticalf("Block %d stored but state commit failed: %v", height, err)
		return nil, nil, err
	}
	l.pool.Remove(done)

	evs = append(evs, events.Event{
		Type:        events.EventBlockCommit,
		BlockHeight: height,
		Data:        map[string]any{"hash": block.Hash, "txs": len(txs), "fees": fees},
	})
	l.log.Debugf("Produced block %d with %d txs", height, len(txs))
	return block, evs, nil
}

// apply spends the inputs of stx and creates its outputs.
func (l *Ledger) apply(stx *core.SignedTx, id string, height int64) ([]events.Event, uint64, error) {
	if _, err := l.validate(l.state, stx, height); err != nil {
		return nil, 0, err
	}
	var evs []events.Event
	for _, in := range stx.Body.Inputs {
		raw, err := l.state.SpendBox(in)
		if err != nil {
			return nil, 0, err
		}
		evs = append(evs, boxEvent(events.EventBoxSpent, id, height, raw))
	}
	for _, raw := range stx.Body.Materialize(id, height) {
		if err := l.state.PutBox(raw); err != nil {
			return nil, 0, err
		}
		evs = append(evs, boxEvent(events.EventBoxCreated, id, height, raw))
	}
	return evs, stx.Body.Fee, nil
}

func boxEvent(typ events.EventType, txID string, height int64, raw *box.Raw) events.Event {
	return events.Event{
		Type:        typ,
		TxID:        txID,
		BlockHeight: height,
		Data:        map[string]any{"box_id": raw.ID, "address": string(crypto.AddressOf(raw.Proposition)), "box": raw},
	}
}

func actionName(a core.ActionKind) string {
	if a == "" {
		return "transfer"
	}
	return string(a)
}

// Run produces a block every interval until done is closed.
func (l *Ledger) Run(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if _, err := l.ProduceBlock(); err != nil {
				l.log.Errorf("Produce block: %v", err)
			}
		}
	}
}
