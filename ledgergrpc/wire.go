package ledgergrpc

import "github.com/tolelom/tolgame/box"

// Request and response wrappers for methods whose arguments or results are
// not a single struct.

// HeightRequest is the (empty) request for CurrentHeight.
type HeightRequest struct{}

// HeightResponse carries the tip height.
type HeightResponse struct {
	Height int64 `cramberry:"1"`
}

// AddressRequest selects the boxes guarded by one address.
type AddressRequest struct {
	Address string `cramberry:"1"`
}

// BoxRequest selects one box by id.
type BoxRequest struct {
	ID string `cramberry:"1"`
}

// GameRequest selects protocol boxes by game NFT id.
type GameRequest struct {
	NFTID string `cramberry:"1"`
}

// BoxResponse wraps a single box.
type BoxResponse struct {
	Box box.Raw `cramberry:"1"`
}

// BoxesResponse wraps a list of boxes.
type BoxesResponse struct {
	Boxes []box.Raw `cramberry:"1"`
}

// SubmitResponse carries the id of an accepted transaction.
type SubmitResponse struct {
	TxID string `cramberry:"1"`
}

func wrapBoxes(raws []*box.Raw) *BoxesResponse {
	resp := &BoxesResponse{Boxes: make([]box.Raw, 0, len(raws))}
	for _, r := range raws {
		resp.Boxes = append(resp.Boxes, *r)
	}
	return resp
}

func (r *BoxesResponse) unwrap() []*box.Raw {
	out := make([]*box.Raw, len(r.Boxes))
	for i := range r.Boxes {
		out[i] = &r.Boxes[i]
	}
	return out
}

// boxCopy detaches a cached box from the caller.
func boxCopy(raw *box.Raw) *box.Raw {
	c := *raw
	return &c
}
