// Package private maintains the group of handlers the altchain node uses to
// drive the PoP state.
package private

import (
	"context"
	"net/http"

	"github.com/VeriBlock/alt-integration-go/business/web/errs"
	"github.com/VeriBlock/alt-integration-go/business/web/params"
	"github.com/VeriBlock/alt-integration-go/business/web/validate"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/state"
	"github.com/VeriBlock/alt-integration-go/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of altchain endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// AcceptBlock validates an altchain block and attaches its PopData. A block
// submitted without PopData only has its header linked.
func (h Handlers) AcceptBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var nb newBlock
	if err := web.Decode(r, &nb); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(nb); err != nil {
		return err
	}

	h.Log.Infow("accept block", "traceid", v.TraceID, "hash", nb.Hash, "height", nb.Height)

	var info state.BlockInfo
	if nb.PopData == nil {
		info, err = h.State.AcceptBlockHeader(nb.header())
	} else {
		info, err = h.State.AcceptBlock(ctx, nb.header(), *nb.PopData)
	}
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, info, http.StatusOK)
}

// SetState moves the active chain to the specified block.
func (h Handlers) SetState(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash, err := params.Hash(r, "hash")
	if err != nil {
		return err
	}

	if err := h.State.SetState(hash); err != nil {
		return err
	}

	tips, err := h.State.QueryTips()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, tips, http.StatusOK)
}

// ComparePopScore compares the chain ending at the specified block against
// the active chain and switches when the candidate wins.
func (h Handlers) ComparePopScore(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash, err := params.Hash(r, "hash")
	if err != nil {
		return err
	}

	res, err := h.State.ComparePopScore(hash)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, res, http.StatusOK)
}

// DetermineBestChain runs fork resolution over every altchain tip.
func (h Handlers) DetermineBestChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	info, err := h.State.DetermineBestChain()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, info, http.StatusOK)
}

// InvalidateBlock marks the block and its descendants as invalid.
func (h Handlers) InvalidateBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash, err := params.Hash(r, "hash")
	if err != nil {
		return err
	}

	if err := h.State.InvalidateBlock(hash); err != nil {
		return err
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// FinalizeBlock marks an active block and its ancestors as final so no
// reorg can replace them. Competing branches stay in the tree.
func (h Handlers) FinalizeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash, err := params.Hash(r, "hash")
	if err != nil {
		return err
	}

	if err := h.State.FinalizeBlock(hash); err != nil {
		return err
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// RemovePayloads detaches the PopData of a block that is not applied.
func (h Handlers) RemovePayloads(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash, err := params.Hash(r, "hash")
	if err != nil {
		return err
	}

	if err := h.State.RemovePayloads(hash); err != nil {
		return err
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// PopData returns the PopData the next altchain block should carry.
func (h Handlers) PopData(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pd, err := h.State.GeneratePopData()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, pd, http.StatusOK)
}

// RemoveFromMempool drops the payloads of the PopData in the body from the
// mempool.
func (h Handlers) RemoveFromMempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var pd database.PopData
	if err := web.Decode(r, &pd); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	n := h.State.RemoveFromMempool(pd)

	return web.Respond(ctx, w, removed{Removed: n}, http.StatusOK)
}

// Save writes the altchain tree to storage.
func (h Handlers) Save(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.Save(); err != nil {
		return err
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}
