// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/VeriBlock/alt-integration-go/business/web/errs"
	"github.com/VeriBlock/alt-integration-go/business/web/params"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/state"
	"github.com/VeriBlock/alt-integration-go/foundation/events"
	"github.com/VeriBlock/alt-integration-go/foundation/nameservice"
	"github.com/VeriBlock/alt-integration-go/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of query and payload submission endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client. The filter
// query parameter restricts the events to the comma separated prefixes.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	var prefixes []string
	if f := r.URL.Query().Get("filter"); f != "" {
		prefixes = strings.Split(f, ",")
	}

	ch := h.Evts.Acquire(v.TraceID, prefixes...)
	defer func() {
		dropped, _ := h.Evts.Release(v.TraceID)
		if dropped > 0 {
			h.Log.Infow("events", "traceid", v.TraceID, "dropped", dropped)
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteJSON(evt); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the chain parameters the node runs with.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Genesis(), http.StatusOK)
}

// Tips returns the active tips of the three chains.
func (h Handlers) Tips(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tips, err := h.State.QueryTips()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, tips, http.StatusOK)
}

// AltTips returns every altchain tip in fork resolution order.
func (h Handlers) AltTips(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tips, err := h.State.QueryAltTips()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, tips, http.StatusOK)
}

// Block returns a block of the specified chain.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash, err := params.Hash(r, "hash")
	if err != nil {
		return err
	}

	tier := strings.ToUpper(web.Param(r, "chain"))

	info, found, err := h.State.QueryBlock(tier, hash)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if !found {
		return errs.NewTrusted(fmt.Errorf("%s block %s not found", tier, hash), http.StatusNotFound)
	}

	return web.Respond(ctx, w, info, http.StatusOK)
}

// Chain returns the active altchain from the height in the from query
// parameter up to the tip.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, err := params.Height(r, "from", 0)
	if err != nil {
		return err
	}

	blocks, err := h.State.QueryBestChain(from)
	if err != nil {
		return err
	}

	if len(blocks) > 0 {
		from = blocks[0].Height
	}

	return web.Respond(ctx, w, chainInfo{From: from, Blocks: blocks}, http.StatusOK)
}

// Mempool returns the pending payloads grouped by the intermediate chain
// block they depend on.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	info := mempoolInfo{
		Count:     h.State.QueryMempoolLength(),
		Relations: h.State.QueryMempool(),
	}

	return web.Respond(ctx, w, info, http.StatusOK)
}

// Payload returns a payload known to the node and the altchain blocks
// containing it.
func (h Handlers) Payload(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	kind, err := params.Kind(r, "kind")
	if err != nil {
		return err
	}

	id, err := params.Hash(r, "id")
	if err != nil {
		return err
	}

	containing, err := h.State.QueryContainingBlocks(id)
	if err != nil {
		return err
	}

	p, inMempool := h.State.QueryMempoolPayload(id)
	if inMempool && p.Kind() != kind {
		inMempool, p = false, nil
	}

	if !inMempool && len(containing) == 0 {
		return errs.NewTrusted(fmt.Errorf("%s %s not found", kind, id), http.StatusNotFound)
	}

	info := payloadInfo{
		Kind:       kind.String(),
		ID:         id,
		Payload:    p,
		InMempool:  inMempool,
		Containing: containing,
		Miner:      h.miner(p),
	}

	return web.Respond(ctx, w, info, http.StatusOK)
}

// SubmitPayload validates the payload in the body and adds it to the
// mempool. Payloads failing validation are reported in the result, not as
// a request error.
func (h Handlers) SubmitPayload(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	kind, err := params.Kind(r, "kind")
	if err != nil {
		return err
	}

	p, err := decodePayload(r, kind)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit payload", "traceid", v.TraceID, "kind", kind, "id", p.ID())

	res, err := h.State.SubmitPayload(ctx, p)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errs.NewTrusted(err, http.StatusRequestTimeout)
		}
		return err
	}

	return web.Respond(ctx, w, res, http.StatusOK)
}

// miner names the signer of an ATV or VTB.
func (h Handlers) miner(p database.Payload) string {
	if h.NS == nil {
		return ""
	}

	switch v := p.(type) {
	case database.ATV:
		return h.NS.Lookup(v.PublicKey)
	case database.VTB:
		return h.NS.Lookup(v.PublicKey)
	}
	return ""
}

func decodePayload(r *http.Request, kind database.PayloadKind) (database.Payload, error) {
	switch kind {
	case database.KindVbkBlock:
		var b database.VbkBlock
		if err := web.Decode(r, &b); err != nil {
			return nil, err
		}
		return b, nil

	case database.KindVTB:
		var vtb database.VTB
		if err := web.Decode(r, &vtb); err != nil {
			return nil, err
		}
		return vtb, nil

	case database.KindATV:
		var atv database.ATV
		if err := web.Decode(r, &atv); err != nil {
			return nil, err
		}
		return atv, nil
	}

	return nil, fmt.Errorf("payload kind %s is not accepted", kind)
}
