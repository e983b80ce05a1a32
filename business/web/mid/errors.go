package mid

import (
	"context"
	"errors"
	"net/http"

	"github.com/VeriBlock/alt-integration-go/business/web/errs"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/state"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
	"github.com/VeriBlock/alt-integration-go/foundation/web"
	"go.uber.org/zap"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors which are used to respond to the client in a uniform way.
// Unexpected errors (status >= 500) are logged.
func Errors(log *zap.SugaredLogger) web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// If the context is missing this value, request the service
			// to be shutdown gracefully.
			v, err := web.GetValues(ctx)
			if err != nil {
				return web.NewShutdownError("web value missing from context")
			}

			// Run the next handler and catch any propagated error.
			if err := handler(ctx, w, r); err != nil {

				// Log the error.
				log.Errorw("ERROR", "traceid", v.TraceID, "ERROR", err)

				// Build out the error response.
				resp := errs.NewResponse(err)
				status := statusOf(err)
				if status == http.StatusInternalServerError {
					resp = errs.Response{Error: http.StatusText(status)}
				}

				// Respond with the error back to the client.
				if err := web.Respond(ctx, w, resp, status); err != nil {
					return err
				}

				// If we receive the shutdown err we need to return it
				// back to the base handler to shut down the service.
				if web.IsShutdown(err) {
					return err
				}
			}

			// The error has been handled so we can stop propagating it.
			return nil
		}

		return h
	}

	return m
}

// statusOf maps an error to the status code returned to the client.
func statusOf(err error) int {
	var fe errs.FieldErrors

	switch {
	case errs.IsTrusted(err):
		return errs.GetTrusted(err).Status

	case errors.As(err, &fe):
		return http.StatusBadRequest

	case validation.IsInvalid(err):
		return http.StatusBadRequest

	case errors.Is(err, state.ErrCorrupted):
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}
