package handler

import (
	"errors"
	"net/http"

	"fleet-tracker/internal/domain/tracking"
)

// ----- Handler: GET /drivers/locations -----

// handleDriverSnapshots serves the durable last-known state for clients in polling mode.
func (handler *GatewayHTTPHandler) handleDriverSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	rows, err := handler.svc.DriverSnapshots(ctx)
	if err != nil {
		handler.httpError(ctx, w, statusFor(err), "Failed to load driver locations", err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	handler.jsonResponse(ctx, w, http.StatusOK, rows)
}

// ----- Handler: GET /drivers/live -----

// handleLiveState returns what the state store currently holds.
func (handler *GatewayHTTPHandler) handleLiveState(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	live, err := handler.svc.LiveState(ctx)
	if err != nil {
		handler.httpError(ctx, w, statusFor(err), "Failed to read live state", err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	handler.jsonResponse(ctx, w, http.StatusOK, live)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tracking.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, tracking.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, tracking.ErrTransientInfra):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
