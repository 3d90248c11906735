package crypto

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Sign produces a 64-byte BIP-340 schnorr signature over a 32-byte digest.
func Sign(priv PrivateKey, digest []byte) ([]byte, error) {
	if len(digest) != DigestSize {
		return nil, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(digest))
	}
	key, _ := btcec.PrivKeyFromBytes(priv)
	sig, err := schnorr.Sign(key, digest)
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

// Verify checks a schnorr signature over digest against pub.
func Verify(pub PublicKey, digest, sig []byte) error {
	key, err := btcec.ParsePubKey(pub)
	if err != nil {
		return fmt.Errorf("invalid pubkey: %w", err)
	}
	s, err := schnorr.ParseSignature(sig)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	if !s.Verify(digest, key) {
		return errors.New("signature verification failed")
	}
	return nil
}
