package rules

import (
	"fmt"
	"sync"

	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/game"
)

// Role says how a transition references the game box.
type Role int

const (
	RoleNone Role = iota
	RoleInput
	RoleDataInput
)

// AnyCount allows any number of consumed participations.
const AnyCount = -1

// Rule is the guard for one action. Check and Outcome are pure functions of
// the intent; bind recovers the action-specific intent fields from a
// concrete transaction.
type Rule struct {
	Game           Role
	Participations int // consumed participation boxes, or AnyCount
	SelfFunded     bool

	prepare func(in *Intent, p game.Params)
	check   func(in *Intent, p game.Params) error
	outcome func(in *Intent, p game.Params) (*Outcome, error)
	bind    func(tx *core.UnsignedTx, in *Intent) error
}

// Registry maps action kinds to rules. Thread-safe for concurrent registration.
type Registry struct {
	mu    sync.RWMutex
	rules map[core.ActionKind]*Rule
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[core.ActionKind]*Rule)}
}

// Register associates kind with r. Panics on duplicate registration.
func (reg *Registry) Register(kind core.ActionKind, r *Rule) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.rules[kind]; exists {
		panic(fmt.Sprintf("rules: rule already registered for action %q", kind))
	}
	reg.rules[kind] = r
}

// Lookup returns the rule for kind.
func (reg *Registry) Lookup(kind core.ActionKind) (*Rule, error) {
	reg.mu.RLock()
	r, ok := reg.rules[kind]
	reg.mu.RUnlock()
	if !ok {
		return nil, core.Violation(kind, core.PredUnknownAction, "no rule registered")
	}
	return r, nil
}

// globalRegistry is the package-level registry that action files register into.
var globalRegistry = NewRegistry()

func register(kind core.ActionKind, r *Rule) {
	globalRegistry.Register(kind, r)
}

// Lookup returns the registered rule for kind.
func Lookup(kind core.ActionKind) (*Rule, error) {
	return globalRegistry.Lookup(kind)
}
