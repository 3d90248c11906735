package orchestrator

import (
	"fmt"

	"github.com/tolelom/tolgame/core"
)

// Stage is a step of the per-request workflow.
type Stage int

const (
	StageIdle Stage = iota
	StageValidating
	StageAssembling
	StageAwaitingSignature
	StageSubmitting
	StageCompleted
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "Idle"
	case StageValidating:
		return "Validating"
	case StageAssembling:
		return "Assembling"
	case StageAwaitingSignature:
		return "AwaitingSignature"
	case StageSubmitting:
		return "Submitting"
	case StageCompleted:
		return "Completed"
	case StageFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// next lists the legal forward transitions.
var next = map[Stage][]Stage{
	StageIdle:              {StageValidating},
	StageValidating:        {StageAssembling, StageFailed},
	StageAssembling:        {StageAwaitingSignature, StageFailed},
	StageAwaitingSignature: {StageSubmitting, StageFailed},
	StageSubmitting:        {StageCompleted, StageFailed},
}

func canMove(from, to Stage) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// WorkflowError reports the stage at which a request failed.
type WorkflowError struct {
	Stage  Stage
	RunID  string
	Action core.ActionKind
	Err    error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s run %s failed at %s: %v", e.Action, e.RunID, e.Stage, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }
