// Package orchestrator runs one lifecycle action end to end: it reads the
// chain, validates, assembles, asks the signer and submits.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/tolelom/tolgame/assembler"
	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/events"
	"github.com/tolelom/tolgame/game"
	"github.com/tolelom/tolgame/rules"
)

const (
	defaultSubmitAttempts = 3
	defaultRetryBackoff   = 500 * time.Millisecond
)

// Options configures an Orchestrator. Identity is the public key of the
// signer: it funds transactions and receives change.
type Options struct {
	Identity          crypto.PublicKey
	Params            game.Params
	MaxSubmitAttempts int
	RetryBackoff      time.Duration
	Emitter           *events.Emitter
	Log               slog.Logger
}

// Orchestrator sequences validation, assembly, signing and submission.
// It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	chain  core.Chain
	signer core.Signer
	asm    *assembler.Assembler
	opts   Options
	log    slog.Logger
}

// New returns an Orchestrator over the given collaborators.
func New(chain core.Chain, signer core.Signer, opts Options) *Orchestrator {
	if opts.MaxSubmitAttempts <= 0 {
		opts.MaxSubmitAttempts = defaultSubmitAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.Params == (game.Params{}) {
		opts.Params = game.DefaultParams()
	}
	log := opts.Log
	if log == nil {
		log = slog.Disabled
	}
	return &Orchestrator{
		chain:  chain,
		signer: signer,
		asm:    assembler.New(opts.Params),
		opts:   opts,
		log:    log,
	}
}

// run tracks one request through the workflow stages.
type run struct {
	o      *Orchestrator
	id     string
	action core.ActionKind
	stage  Stage
}

func (r *run) move(to Stage) {
	if !canMove(r.stage, to) {
		panic(fmt.Sprintf("orchestrator: illegal transition %s -> %s", r.stage, to))
	}
	r.o.log.Debugf("Run %s (%s): %s -> %s", r.id, r.action, r.stage, to)
	r.o.opts.Emitter.Emit(events.Event{
		Type: events.EventWorkflowStage,
		Data: map[string]any{"run_id": r.id, "action": string(r.action), "from": r.stage.String(), "stage": to.String()},
	})
	r.stage = to
}

func (r *run) fail(err error) error {
	at := r.stage
	r.move(StageFailed)
	r.o.log.Warnf("Run %s (%s) failed at %s: %v", r.id, r.action, at, err)
	return &WorkflowError{Stage: at, RunID: r.id, Action: r.action, Err: err}
}

// Execute runs req to completion and returns the submitted transaction id.
// Every failure is a *WorkflowError naming the stage it happened in.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (string, error) {
	r := &run{o: o, id: uuid.New().String(), action: req.Kind, stage: StageIdle}
	o.log.Infof("Run %s: %s game=%s participation=%s", r.id, req.Kind, req.GameRef, req.ParticipationRef)

	r.move(StageValidating)
	height, err := o.chain.CurrentHeight(ctx)
	if err != nil {
		return "", r.fail(fmt.Errorf("current height: %w", err))
	}
	funding, err := o.funding(ctx)
	if err != nil {
		return "", r.fail(err)
	}
	in, err := o.intent(ctx, req, height, funding)
	if err != nil {
		return "", r.fail(err)
	}
	if err := rules.Prepare(in, o.opts.Params); err != nil {
		return "", r.fail(err)
	}
	if err := rules.Check(in, o.opts.Params); err != nil {
		return "", r.fail(err)
	}

	r.move(StageAssembling)
	tx, err := o.asm.Build(in, funding, crypto.P2PK(o.opts.Identity))
	if err != nil {
		return "", r.fail(err)
	}
	if err := rules.Verify(tx, height, o.opts.Params); err != nil {
		return "", r.fail(fmt.Errorf("assembled transaction fails its own guard: %w", err))
	}

	r.move(StageAwaitingSignature)
	signed, err := o.signer.Sign(ctx, tx)
	if err != nil {
		var se *core.SignError
		if !errors.Is(err, core.ErrUserCancelled) && !errors.As(err, &se) {
			err = &core.SignError{Err: err}
		}
		return "", r.fail(err)
	}

	r.move(StageSubmitting)
	txID, err := o.submit(ctx, r, signed)
	if err != nil {
		return "", r.fail(err)
	}
	r.move(StageCompleted)
	o.log.Infof("Run %s: %s submitted as %s", r.id, req.Kind, txID)
	return txID, nil
}

// submit retries transient failures with the same signed transaction.
func (o *Orchestrator) submit(ctx context.Context, r *run, signed *core.SignedTx) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= o.opts.MaxSubmitAttempts; attempt++ {
		txID, err := o.chain.Submit(ctx, signed)
		if err == nil {
			return txID, nil
		}
		lastErr = err
		if !core.IsTransient(err) {
			return "", err
		}
		if attempt == o.opts.MaxSubmitAttempts {
			break
		}
		o.log.Debugf("Run %s: submit attempt %d failed, retrying: %v", r.id, attempt, err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(o.opts.RetryBackoff):
		}
	}
	return "", fmt.Errorf("submit failed after %d attempts: %w", o.opts.MaxSubmitAttempts, lastErr)
}

// funding returns the decoded unspent boxes owned by the identity.
func (o *Orchestrator) funding(ctx context.Context) ([]*box.Box, error) {
	raws, err := o.chain.UnspentOutputsFor(ctx, o.opts.Identity.Address())
	if err != nil {
		return nil, fmt.Errorf("unspent outputs: %w", err)
	}
	out := make([]*box.Box, 0, len(raws))
	for _, raw := range raws {
		b, err := box.Decode(raw)
		if err != nil {
			o.log.Warnf("Skipping undecodable funding box %s: %v", raw.ID, err)
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
