// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/VeriBlock/alt-integration-go/app/services/node/handlers/v1/private"
	"github.com/VeriBlock/alt-integration-go/app/services/node/handlers/v1/public"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/state"
	"github.com/VeriBlock/alt-integration-go/foundation/events"
	"github.com/VeriBlock/alt-integration-go/foundation/nameservice"
	"github.com/VeriBlock/alt-integration-go/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/tips", pbl.Tips)
	app.Handle(http.MethodGet, version, "/alt/tips", pbl.AltTips)
	app.Handle(http.MethodGet, version, "/alt/chain", pbl.Chain)
	app.Handle(http.MethodGet, version, "/blocks/:chain/:hash", pbl.Block)
	app.Handle(http.MethodGet, version, "/mempool", pbl.Mempool)
	app.Handle(http.MethodGet, version, "/pop/:kind/:id", pbl.Payload)
	app.Handle(http.MethodPost, version, "/pop/:kind", pbl.SubmitPayload)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	app.Handle(http.MethodPost, version, "/alt/blocks", prv.AcceptBlock)
	app.Handle(http.MethodPost, version, "/alt/blocks/:hash/state", prv.SetState)
	app.Handle(http.MethodPost, version, "/alt/blocks/:hash/compare", prv.ComparePopScore)
	app.Handle(http.MethodPost, version, "/alt/blocks/:hash/invalidate", prv.InvalidateBlock)
	app.Handle(http.MethodPost, version, "/alt/blocks/:hash/finalize", prv.FinalizeBlock)
	app.Handle(http.MethodPost, version, "/alt/blocks/:hash/payloads/remove", prv.RemovePayloads)
	app.Handle(http.MethodPost, version, "/alt/best", prv.DetermineBestChain)
	app.Handle(http.MethodGet, version, "/pop/data", prv.PopData)
	app.Handle(http.MethodPost, version, "/mempool/remove", prv.RemoveFromMempool)
	app.Handle(http.MethodPost, version, "/state/save", prv.Save)
}
