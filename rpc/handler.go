package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/game"
	"github.com/tolelom/tolgame/ledger"
)

// Node is the ledger surface served over JSON-RPC.
type Node interface {
	core.Chain
	BlockByHeight(height int64) (*ledger.Block, error)
	MempoolSize() int
}

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	node    Node
	locator core.GameLocator // nil → getGame and getParticipations unavailable
}

// NewHandler creates an RPC Handler. locator may be nil.
func NewHandler(node Node, locator core.GameLocator) *Handler {
	return &Handler{node: node, locator: locator}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodHeight:
		height, err := h.node.CurrentHeight(ctx)
		if err != nil {
			return errFrom(req.ID, err)
		}
		return okResponse(req.ID, height)

	case MethodBlock:
		return h.getBlock(ctx, req)

	case MethodBox:
		return h.getBox(ctx, req)

	case MethodUnspent:
		return h.getUnspent(ctx, req)

	case MethodGame:
		return h.getGame(ctx, req)

	case MethodParticipations:
		return h.getParticipations(ctx, req)

	case MethodSendTx:
		return h.sendTx(ctx, req)

	case MethodMempoolSize:
		return okResponse(req.ID, h.node.MempoolSize())

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

func (h *Handler) getBlock(ctx context.Context, req Request) Response {
	var params BlockParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	height, err := h.node.CurrentHeight(ctx)
	if err != nil {
		return errFrom(req.ID, err)
	}
	if params.Height != nil {
		height = *params.Height
	}
	block, err := h.node.BlockByHeight(height)
	if err != nil {
		return errFrom(req.ID, err)
	}
	return okResponse(req.ID, block)
}

func (h *Handler) getBox(ctx context.Context, req Request) Response {
	var params BoxParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.ID == "" {
		return errResponse(req.ID, CodeInvalidParams, "id is required")
	}
	raw, err := h.node.BoxByID(ctx, params.ID)
	if err != nil {
		return errFrom(req.ID, err)
	}
	return okResponse(req.ID, raw)
}

func (h *Handler) getUnspent(ctx context.Context, req Request) Response {
	var params UnspentParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	addr := crypto.Address(params.Address)
	switch {
	case params.PubKey != "":
		pub, err := crypto.PubKeyFromHex(params.PubKey)
		if err != nil {
			return errResponse(req.ID, CodeInvalidParams, err.Error())
		}
		addr = pub.Address()
	case params.Address == "":
		return errResponse(req.ID, CodeInvalidParams, "address or pubkey is required")
	}
	if _, err := addr.Proposition(); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	raws, err := h.node.UnspentOutputsFor(ctx, addr)
	if err != nil {
		return errFrom(req.ID, err)
	}
	return okResponse(req.ID, raws)
}

func (h *Handler) getGame(ctx context.Context, req Request) Response {
	nft, resp, ok := h.nftParam(req)
	if !ok {
		return resp
	}
	raw, err := h.locator.GameBoxByNFT(ctx, nft)
	if err != nil {
		return errFrom(req.ID, err)
	}
	g, err := game.DecodeGameRaw(raw)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	stake, err := g.Stake()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, GameView{Box: raw, NFTID: g.NFTID, Status: g.Status.String(), Stake: stake})
}

func (h *Handler) getParticipations(ctx context.Context, req Request) Response {
	nft, resp, ok := h.nftParam(req)
	if !ok {
		return resp
	}
	raws, err := h.locator.ParticipationsByNFT(ctx, nft)
	if err != nil {
		return errFrom(req.ID, err)
	}
	return okResponse(req.ID, raws)
}

func (h *Handler) nftParam(req Request) (string, Response, bool) {
	if h.locator == nil {
		return "", errResponse(req.ID, CodeMethodNotFound, "game index not served"), false
	}
	var params GameParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return "", errResponse(req.ID, CodeInvalidParams, err.Error()), false
	}
	if params.NFT == "" {
		return "", errResponse(req.ID, CodeInvalidParams, "nft is required"), false
	}
	return params.NFT, Response{}, true
}

func (h *Handler) sendTx(ctx context.Context, req Request) Response {
	var tx core.SignedTx
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	id, err := h.node.Submit(ctx, &tx)
	if err != nil {
		return errFrom(req.ID, err)
	}
	return okResponse(req.ID, SendTxResult{TxID: id})
}
