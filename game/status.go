package game

import (
	"fmt"

	"github.com/tolelom/tolgame/box"
)

// SchemaVersion is the only register layout version this codec accepts.
const SchemaVersion int32 = 1

// Status is the lifecycle state of a game box.
type Status int32

const (
	StatusActive Status = iota
	StatusResolved
	StatusCancelledDraining
	StatusCancelledFinalized
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusResolved:
		return "Resolved"
	case StatusCancelledDraining:
		return "Cancelled_Draining"
	case StatusCancelledFinalized:
		return "Cancelled_Finalized"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Cancelled reports whether s is one of the cancellation states.
func (s Status) Cancelled() bool {
	return s == StatusCancelledDraining || s == StatusCancelledFinalized
}

func parseStatus(tag int32) (Status, error) {
	switch s := Status(tag); s {
	case StatusActive, StatusResolved, StatusCancelledDraining, StatusCancelledFinalized:
		return s, nil
	default:
		return 0, box.NewDecodeError(box.CodeUnknownStatus, box.R4.String(), "game status tag %d", tag)
	}
}

// ParticipationStatus is the lifecycle state of a participation box.
type ParticipationStatus int32

const (
	ParticipationSubmitted ParticipationStatus = iota
	ParticipationResolved
)

func (s ParticipationStatus) String() string {
	switch s {
	case ParticipationSubmitted:
		return "Submitted"
	case ParticipationResolved:
		return "Resolved"
	default:
		return fmt.Sprintf("ParticipationStatus(%d)", int32(s))
	}
}

func parseParticipationStatus(tag int32) (ParticipationStatus, error) {
	switch s := ParticipationStatus(tag); s {
	case ParticipationSubmitted, ParticipationResolved:
		return s, nil
	default:
		return 0, box.NewDecodeError(box.CodeUnknownStatus, box.R4.String(), "participation status tag %d", tag)
	}
}

func header(tag int32) box.Value {
	return box.Pair{L: box.Int(SchemaVersion), R: box.Int(tag)}
}

// readHeader decodes R4 and returns the status tag.
func readHeader(b *box.Box) (int32, error) {
	v, err := b.Register(box.R4)
	if err != nil {
		return 0, err
	}
	p, err := box.AsPair(box.R4, v)
	if err != nil {
		return 0, err
	}
	ver, err := box.AsInt(box.R4, p.L)
	if err != nil {
		return 0, err
	}
	if ver != SchemaVersion {
		return 0, box.NewDecodeError(box.CodeUnsupportedSchemaVersion, box.R4.String(), "schema version %d", ver)
	}
	return box.AsInt(box.R4, p.R)
}
