package handler

import (
	"encoding/json"
	"net/http"
)

// ----- Handler: GET /health -----

// handleHealth reports liveness. A gateway without its bus still serves local connections,
// so it stays 200 and reports the degraded mode instead.
func (handler *GatewayHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	type resp struct {
		Status      string `json:"status"`
		Bus         string `json:"bus"`
		BusDriver   string `json:"busDriver"`
		StoreDriver string `json:"storeDriver"`
		Connections int    `json:"connections"`
	}

	bus := "ready"
	if !handler.svc.BusReady() {
		bus = "degraded"
	}

	_ = json.NewEncoder(w).Encode(resp{
		Status:      "ok",
		Bus:         bus,
		BusDriver:   handler.opts.BusDriver,
		StoreDriver: handler.opts.StoreDriver,
		Connections: handler.hub.Count(),
	})
}
