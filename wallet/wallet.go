package wallet

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
)

// ConfirmFunc is asked before every signature. Returning
// core.ErrUserCancelled declines the transaction.
type ConfirmFunc func(ctx context.Context, tx *core.UnsignedTx) error

// Wallet holds a key pair and signs the inputs it guards.
type Wallet struct {
	priv    crypto.PrivateKey
	pub     crypto.PublicKey
	confirm ConfirmFunc
}

// New creates a Wallet from an existing private key. A nil confirm signs
// without asking.
func New(priv crypto.PrivateKey, confirm ConfirmFunc) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public(), confirm: confirm}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv, nil), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the compressed public key.
func (w *Wallet) PubKey() crypto.PublicKey {
	return w.pub
}

// Address returns the address of boxes this wallet can spend.
func (w *Wallet) Address() crypto.Address {
	return w.pub.Address()
}

// Sign proves every input guarded by the wallet's key. Protocol inputs need
// no proof; an input guarded by any other key cannot be signed.
func (w *Wallet) Sign(ctx context.Context, tx *core.UnsignedTx) (*core.SignedTx, error) {
	if w.confirm != nil {
		if err := w.confirm(ctx, tx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &core.SignError{Err: err}
	}
	body := tx.Body()
	digest, err := body.Digest()
	if err != nil {
		return nil, &core.SignError{Err: err}
	}
	own := crypto.P2PK(w.pub)
	signed := &core.SignedTx{Body: body}
	for i, in := range tx.Inputs {
		if crypto.IsContract(in.Proposition) {
			continue
		}
		if !bytes.Equal(in.Proposition, own) {
			return nil, &core.SignError{Err: fmt.Errorf("input %d (%s) is not guarded by this wallet", i, in.ID)}
		}
		sig, err := crypto.Sign(w.priv, digest)
		if err != nil {
			return nil, &core.SignError{Err: err}
		}
		signed.Proofs = append(signed.Proofs, core.Proof{Input: uint32(i), Signature: sig})
	}
	return signed, nil
}
