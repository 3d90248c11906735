package crypto

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Proposition prefixes. A proposition is the guard attached to a box: either
// a single public key, or a named protocol contract.
var (
	p2pkPrefix     = []byte{0x00, 0x08, 0xcd}
	contractPrefix = []byte{0x10, 0x04}
)

// Address is the hex form of a proposition, used to look up a guard's boxes.
type Address string

// AddressOf returns the address of a proposition.
func AddressOf(prop []byte) Address {
	return Address(hex.EncodeToString(prop))
}

// Proposition decodes the address back into proposition bytes.
func (a Address) Proposition() ([]byte, error) {
	b, err := hex.DecodeString(string(a))
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", string(a), err)
	}
	return b, nil
}

// P2PK returns the proposition satisfied by a signature from pub.
func P2PK(pub PublicKey) []byte {
	out := make([]byte, 0, len(p2pkPrefix)+len(pub))
	out = append(out, p2pkPrefix...)
	return append(out, pub...)
}

// ParseP2PK extracts the public key from a pay-to-public-key proposition.
func ParseP2PK(prop []byte) (PublicKey, bool) {
	if len(prop) != len(p2pkPrefix)+PublicKeySize || !bytes.HasPrefix(prop, p2pkPrefix) {
		return nil, false
	}
	return PublicKey(bytes.Clone(prop[len(p2pkPrefix):])), true
}

// Contract returns the proposition of a named protocol contract.
func Contract(name string) []byte {
	out := make([]byte, 0, len(contractPrefix)+DigestSize)
	out = append(out, contractPrefix...)
	return append(out, HashBytes([]byte(name))...)
}

// IsContract reports whether prop guards a protocol contract box.
func IsContract(prop []byte) bool {
	return len(prop) == len(contractPrefix)+DigestSize && bytes.HasPrefix(prop, contractPrefix)
}
