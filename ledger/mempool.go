package ledger

import (
	"errors"
	"sync"

	"github.com/tolelom/tolgame/core"
)

const defaultMempoolSize = 10_000

var errMempoolFull = errors.New("mempool full")

type pendingTx struct {
	tx     *core.SignedTx
	inputs []string
}

// Mempool is a thread-safe pending-transaction pool that refuses a second
// spend of any box already consumed by a pending transaction.
type Mempool struct {
	mu     sync.RWMutex
	max    int
	txs    map[string]*pendingTx
	ord    []string          // insertion order
	spends map[string]string // box id -> spending tx id
}

// NewMempool creates an empty mempool holding at most max transactions.
func NewMempool(max int) *Mempool {
	if max <= 0 {
		max = defaultMempoolSize
	}
	return &Mempool{
		max:    max,
		txs:    make(map[string]*pendingTx),
		spends: make(map[string]string),
	}
}

// Add inserts tx, spending inputs. It returns the id of a conflicting
// pending transaction when an input is already claimed.
func (m *Mempool) Add(id string, tx *core.SignedTx, inputs []string) (conflict string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range inputs {
		if other, ok := m.spends[in]; ok {
			return other, nil
		}
	}
	if len(m.txs) >= m.max {
		return "", errMempoolFull
	}
	m.txs[id] = &pendingTx{tx: tx, inputs: inputs}
	m.ord = append(m.ord, id)
	for _, in := range inputs {
		m.spends[in] = id
	}
	return "", nil
}

// Has reports whether id is pending.
func (m *Mempool) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.txs[id]
	return ok
}

// Pending returns up to n pending transaction ids in insertion order.
func (m *Mempool) Pending(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]string, 0, min(n, len(m.ord)))
	for _, id := range m.ord {
		if len(result) >= n {
			break
		}
		result = append(result, id)
	}
	return result
}

// Get returns a pending transaction by id.
func (m *Mempool) Get(id string) (*core.SignedTx, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.txs[id]
	if !ok {
		return nil, false
	}
	return p.tx, true
}

// Remove deletes transactions by id and releases their inputs.
func (m *Mempool) Remove(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := make(map[string]bool, len(ids))
	for _, id := range ids {
		p, ok := m.txs[id]
		if !ok {
			continue
		}
		for _, in := range p.inputs {
			if m.spends[in] == id {
				delete(m.spends, in)
			}
		}
		delete(m.txs, id)
		removed[id] = true
	}
	filtered := m.ord[:0]
	for _, id := range m.ord {
		if !removed[id] {
			filtered = append(filtered, id)
		}
	}
	m.ord = filtered
}

// Size returns the current number of pending transactions.
func (m *Mempool) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}
