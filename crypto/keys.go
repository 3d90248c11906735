package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// PublicKeySize is the length of a compressed secp256k1 public key.
const PublicKeySize = btcec.PubKeyBytesLenCompressed

// PrivateKey wraps a 32-byte secp256k1 scalar.
type PrivateKey []byte

// PublicKey wraps a 33-byte compressed secp256k1 point.
type PublicKey []byte

// GenerateKeyPair generates a new secp256k1 key pair.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, nil, err
	}
	return PrivateKey(priv.Serialize()), PublicKey(priv.PubKey().SerializeCompressed()), nil
}

// Hex returns the hex-encoded compressed public key.
func (pub PublicKey) Hex() string {
	return hex.EncodeToString(pub)
}

// Address returns the pay-to-public-key address guarding boxes owned by pub.
func (pub PublicKey) Address() Address {
	return AddressOf(P2PK(pub))
}

// Validate reports whether pub is a well-formed point on the curve.
func (pub PublicKey) Validate() error {
	if len(pub) != PublicKeySize {
		return fmt.Errorf("pubkey must be %d bytes, got %d", PublicKeySize, len(pub))
	}
	if _, err := btcec.ParsePubKey(pub); err != nil {
		return fmt.Errorf("invalid pubkey: %w", err)
	}
	return nil
}

// Hex returns the hex-encoded private key.
func (priv PrivateKey) Hex() string {
	return hex.EncodeToString(priv)
}

// Public derives the compressed public key from the private key.
func (priv PrivateKey) Public() PublicKey {
	_, pub := btcec.PrivKeyFromBytes(priv)
	return PublicKey(pub.SerializeCompressed())
}

// PubKeyFromHex decodes and validates a hex-encoded compressed public key.
func PubKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid pubkey hex: %w", err)
	}
	pub := PublicKey(b)
	if err := pub.Validate(); err != nil {
		return nil, err
	}
	return pub, nil
}

// PrivKeyFromHex decodes a hex-encoded private key.
func PrivKeyFromHex(s string) (PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid privkey hex: %w", err)
	}
	if len(b) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("privkey must be %d bytes, got %d", btcec.PrivKeyBytesLen, len(b))
	}
	return PrivateKey(b), nil
}
