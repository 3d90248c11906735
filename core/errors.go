package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// ErrUserCancelled is returned by a Signer when the user declines to sign.
var ErrUserCancelled = errors.New("user cancelled signing")

// Assembler-level funding failures. Both are recoverable by adding funds.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoSpendableInputs = errors.New("no spendable inputs")
)

// Predicate names a guard condition that a transition must satisfy.
type Predicate string

const (
	PredSubjectStatus      Predicate = "subject_status"
	PredDataInput          Predicate = "data_input"
	PredSchema             Predicate = "schema"
	PredNFTMint            Predicate = "nft_mint"
	PredNFTPreserved       Predicate = "nft_preserved"
	PredGameRef            Predicate = "game_ref"
	PredStakeMatchesValue  Predicate = "stake_matches_value"
	PredDeadlineFuture     Predicate = "deadline_in_future"
	PredBeforeDeadline     Predicate = "before_deadline"
	PredAfterDeadline      Predicate = "after_deadline"
	PredWithinGrace        Predicate = "within_grace_window"
	PredGraceElapsed       Predicate = "grace_elapsed"
	PredCommissionBounds   Predicate = "commission_bounds"
	PredParticipationValue Predicate = "participation_value"
	PredPlayerKey          Predicate = "player_key"
	PredSubmissionHeight   Predicate = "submission_height"
	PredSecretPreimage     Predicate = "secret_preimage"
	PredJudgeInvited       Predicate = "judge_invited"
	PredWinner             Predicate = "winner"
	PredCommissionSplit    Predicate = "commission_split"
	PredCancelCondition    Predicate = "cancel_condition"
	PredUnlockReached      Predicate = "unlock_reached"
	PredUnlockMonotonic    Predicate = "unlock_monotonic"
	PredDrainAmount        Predicate = "drain_amount"
	PredSuccessor          Predicate = "successor"
	PredRefundRecipient    Predicate = "refund_recipient"
	PredPayoutRecipient    Predicate = "payout_recipient"
	PredPayoutAmount       Predicate = "payout_amount"
	PredAbandonmentElapsed Predicate = "abandonment_elapsed"
	PredValueConservation  Predicate = "value_conservation"
	PredTokenConservation  Predicate = "token_conservation"
	PredFee                Predicate = "fee"
	PredInputShape         Predicate = "input_shape"
	PredOutputShape        Predicate = "output_shape"
	PredUnknownAction      Predicate = "unknown_action"
)

// RuleViolation reports the specific predicate a proposed transition failed.
// The workflow halts before submission; no funds are at risk.
type RuleViolation struct {
	Action    ActionKind
	Predicate Predicate
	Detail    string
}

func (e *RuleViolation) Error() string {
	return fmt.Sprintf("%s: rule %s violated: %s", e.Action, e.Predicate, e.Detail)
}

// Violation creates a RuleViolation with a formatted detail.
func Violation(action ActionKind, pred Predicate, format string, args ...any) *RuleViolation {
	return &RuleViolation{Action: action, Predicate: pred, Detail: fmt.Sprintf(format, args...)}
}

// IsRuleViolation checks whether err is a RuleViolation and returns it.
func IsRuleViolation(err error) (*RuleViolation, bool) {
	var v *RuleViolation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// FundsError reports that the funding party cannot cover a transaction.
// Kind is ErrInsufficientFunds or ErrNoSpendableInputs.
type FundsError struct {
	Kind error
	Need uint64
	Have uint64
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("%v: need %d, have %d", e.Kind, e.Need, e.Have)
}

func (e *FundsError) Unwrap() error { return e.Kind }

// SignError wraps a signer failure other than user cancellation.
type SignError struct {
	Err error
}

func (e *SignError) Error() string { return "sign: " + e.Err.Error() }

func (e *SignError) Unwrap() error { return e.Err }

// SubmitError is returned by Chain.Submit. A transient error may be retried
// with the same signed transaction; a permanent one (e.g. a double spend)
// may not.
type SubmitError struct {
	Transient bool
	Err       error
}

func (e *SubmitError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("submit (%s): %v", kind, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable submit failure.
func Transient(err error) *SubmitError { return &SubmitError{Transient: true, Err: err} }

// Permanent wraps err as a non-retryable submit failure.
func Permanent(err error) *SubmitError { return &SubmitError{Err: err} }

// IsTransient reports whether err is a retryable submit failure.
func IsTransient(err error) bool {
	var s *SubmitError
	return errors.As(err, &s) && s.Transient
}
