package core

import "fmt"

// ActionKind identifies the protocol transition a transaction performs.
type ActionKind string

const (
	ActionCreateGame          ActionKind = "create_game"
	ActionSubmitParticipation ActionKind = "submit_participation"
	ActionResolveGame         ActionKind = "resolve_game"
	ActionCancelGame          ActionKind = "cancel_game"
	ActionDrainStake          ActionKind = "drain_stake"
	ActionRefund              ActionKind = "refund_participation"
	ActionReclaimAfterGrace   ActionKind = "reclaim_after_grace"
	ActionReclaimAbandoned    ActionKind = "reclaim_abandoned"
	ActionClaimPrize          ActionKind = "claim_prize"
	ActionCloseResolved       ActionKind = "close_resolved"
)

// AllActions lists every action kind in lifecycle order.
var AllActions = []ActionKind{
	ActionCreateGame,
	ActionSubmitParticipation,
	ActionResolveGame,
	ActionCancelGame,
	ActionDrainStake,
	ActionRefund,
	ActionReclaimAfterGrace,
	ActionReclaimAbandoned,
	ActionClaimPrize,
	ActionCloseResolved,
}

// ParseActionKind validates a user-supplied action name.
func ParseActionKind(s string) (ActionKind, error) {
	for _, k := range AllActions {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// NoWinner marks an Extension without a winning participation.
const NoWinner int32 = -1

// Extension carries the spender-supplied context a guard evaluates: the
// revealed secret, the public keys of the judges being paid, and the index
// of the winning participation among the transaction inputs.
type Extension struct {
	Secret       []byte   `json:"secret,omitempty" cramberry:"1"`
	JudgePubKeys [][]byte `json:"judges,omitempty" cramberry:"2"`
	Winner       int32    `json:"winner" cramberry:"3"`
}
