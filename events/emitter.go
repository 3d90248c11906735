package events

import (
	"sync"

	"github.com/decred/slog"
)

// EventType labels what happened.
type EventType string

const (
	EventBlockCommit   EventType = "block_commit"
	EventTxAccepted    EventType = "tx_accepted"
	EventTxApplied     EventType = "tx_applied"
	EventTxDropped     EventType = "tx_dropped"
	EventBoxCreated    EventType = "box_created"
	EventBoxSpent      EventType = "box_spent"
	EventWorkflowStage EventType = "workflow_stage"
)

// Event carries a typed payload emitted after a state change.
type Event struct {
	Type        EventType      `json:"type"`
	TxID        string         `json:"tx_id,omitempty"`
	BlockHeight int64          `json:"block_height,omitempty"`
	Data        map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      slog.Logger
}

// NewEmitter creates an Emitter with no subscribers. A nil log disables
// panic reporting.
func NewEmitter(log slog.Logger) *Emitter {
	if log == nil {
		log = slog.Disabled
	}
	return &Emitter{handlers: make(map[EventType][]Handler), log: log}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot halt block production or a workflow.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Errorf("Event handler panicked for %s: %v", ev.Type, r)
				}
			}()
			h(ev)
		}()
	}
}
