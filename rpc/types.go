// Package rpc exposes the development ledger via a JSON-RPC 2.0 HTTP
// endpoint. Boxes travel in their raw register form (box.Raw) and
// transactions as signed bodies (core.SignedTx), so clients decode game
// and participation state themselves.
package rpc

import (
	"encoding/json"
	"errors"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
)

// Method names served by Handler.
const (
	MethodHeight         = "getHeight"
	MethodBlock          = "getBlock"
	MethodBox            = "getBox"
	MethodUnspent        = "getUnspent"
	MethodGame           = "getGame"
	MethodParticipations = "getParticipations"
	MethodSendTx         = "sendTx"
	MethodMempoolSize    = "getMempoolSize"
)

// Request is one call. Params holds the method's params object (BlockParams,
// BoxParams, UnspentParams, GameParams) or, for sendTx, a core.SignedTx.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response carries either Result or Error. Result is a height, a
// ledger.Block, a box.Raw, a []*box.Raw, a GameView or a SendTxResult
// depending on the method.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is the error member of a Response. Codes below -32000 are
// server-defined.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard JSON-RPC error codes, then the server-defined range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32000
	CodeNotFound       = -32001 // unknown or spent box, unknown game
	CodeTxRejected     = -32002 // permanent; do not resend
	CodeTxRetry        = -32003 // transient; resend the same signed transaction
)

// BlockParams selects a block; a nil Height means the tip.
type BlockParams struct {
	Height *int64 `json:"height"`
}

// BoxParams names an unspent box by id.
type BoxParams struct {
	ID string `json:"id"`
}

// UnspentParams names an owner either by address or by hex public key.
// PubKey wins when both are set.
type UnspentParams struct {
	Address string `json:"address"`
	PubKey  string `json:"pubkey"`
}

// GameParams names a game by its NFT id.
type GameParams struct {
	NFT string `json:"nft"`
}

// GameView is the result of getGame: the raw game box plus the fields a
// client usually wants without decoding registers.
type GameView struct {
	Box    *box.Raw `json:"box"`
	NFTID  string   `json:"nft"`
	Status string   `json:"status"`
	Stake  int64    `json:"stake"`
}

// SendTxResult is the result of an accepted sendTx.
type SendTxResult struct {
	TxID string `json:"tx_id"`
}

func errResponse(id any, code int, msg string) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: msg},
	}
}

func okResponse(id, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

// errFrom maps ledger errors onto the server-defined codes.
func errFrom(id any, err error) Response {
	var se *core.SubmitError
	switch {
	case errors.Is(err, core.ErrNotFound):
		return errResponse(id, CodeNotFound, err.Error())
	case errors.As(err, &se) && se.Transient:
		return errResponse(id, CodeTxRetry, err.Error())
	case errors.As(err, &se):
		return errResponse(id, CodeTxRejected, err.Error())
	default:
		return errResponse(id, CodeInternalError, err.Error())
	}
}
