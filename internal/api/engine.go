package api

import (
	"net/http"
)

// RegisterEngineHandlers wires metrics and on-demand scan endpoints into the given mux.
func RegisterEngineHandlers(mux *http.ServeMux, eng Engine) {
	// GET /api/metrics
	mux.HandleFunc("GET /api/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.Metrics())
	})
	// POST /api/scan
	mux.HandleFunc("POST /api/scan", func(w http.ResponseWriter, r *http.Request) {
		if err := eng.Refresh(r.Context()); err != nil {
			jsonError(w, http.StatusInternalServerError, "scan failed: "+err.Error())
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
}
