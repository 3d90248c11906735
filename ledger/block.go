package ledger

import (
	"fmt"
	"time"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
)

// GenesisHash is the previous hash of the genesis block.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// BlockHeader contains the block metadata that is hashed and signed.
type BlockHeader struct {
	Height    int64  `json:"height" cramberry:"1"`
	PrevHash  string `json:"prev_hash" cramberry:"2"`
	StateRoot string `json:"state_root" cramberry:"3"` // root after applying this block
	TxRoot    string `json:"tx_root" cramberry:"4"`
	Timestamp int64  `json:"timestamp" cramberry:"5"`
	Proposer  string `json:"proposer" cramberry:"6"` // compressed pubkey hex
}

// Block is an ordered set of transactions with a signed header.
type Block struct {
	Header       BlockHeader     `json:"header" cramberry:"1"`
	Transactions []core.SignedTx `json:"transactions" cramberry:"2"`
	Hash         string          `json:"hash" cramberry:"3"`
	Signature    []byte          `json:"signature" cramberry:"4"`
}

// ComputeHash returns the hash of the serialised header.
func (b *Block) ComputeHash() (string, error) {
	data, err := cramberry.Marshal(b.Header)
	if err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}
	return crypto.Hash(data), nil
}

// Sign sets Hash and signs it with the proposer's key.
func (b *Block) Sign(priv crypto.PrivateKey) error {
	hash, err := b.ComputeHash()
	if err != nil {
		return err
	}
	b.Hash = hash
	b.Signature, err = crypto.Sign(priv, crypto.HashBytes([]byte(hash)))
	return err
}

// Verify checks the hash and the proposer's signature.
func (b *Block) Verify() error {
	hash, err := b.ComputeHash()
	if err != nil {
		return err
	}
	if hash != b.Hash {
		return fmt.Errorf("block hash mismatch: got %s want %s", b.Hash, hash)
	}
	pub, err := crypto.PubKeyFromHex(b.Header.Proposer)
	if err != nil {
		return fmt.Errorf("invalid proposer: %w", err)
	}
	return crypto.Verify(pub, crypto.HashBytes([]byte(b.Hash)), b.Signature)
}

// ComputeTxRoot builds a deterministic root hash from the transaction ids.
func ComputeTxRoot(ids []string) string {
	if len(ids) == 0 {
		return crypto.Hash([]byte("empty"))
	}
	var buf []byte
	for _, id := range ids {
		buf = append(buf, id...)
	}
	return crypto.Hash(buf)
}

// NewBlock creates an unsigned block.
func NewBlock(height int64, prevHash, proposer string, txs []core.SignedTx, ids []string) *Block {
	return &Block{
		Header: BlockHeader{
			Height:    height,
			PrevHash:  prevHash,
			TxRoot:    ComputeTxRoot(ids),
			Timestamp: time.Now().UnixNano(),
			Proposer:  proposer,
		},
		Transactions: txs,
	}
}
