package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"medtransit-route/internal/buildinfo"
	"medtransit-route/internal/config"
)

// DebugHandler implements GET /api/v1/debug: build info plus a
// non-secret config echo, ported from the teacher's DebugJSON.
func (s *Server) DebugHandler(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                     os.Getenv("PORT"),
			"LOG_LEVEL":                os.Getenv("LOG_LEVEL"),
			"MAX_STOPS_PER_ROUTE":      os.Getenv("MAX_STOPS_PER_ROUTE"),
			"MAX_OPTIMIZATION_SECONDS": os.Getenv("MAX_OPTIMIZATION_SECONDS"),
			"HAS_DATABASE_URL":         os.Getenv("DATABASE_URL") != "",
			"HAS_REDIS_URL":            os.Getenv("REDIS_URL") != "",
			"HAS_GOOGLE_MAPS_API_KEY":  os.Getenv("GOOGLE_MAPS_API_KEY") != "",
		},
	}
	writeJSON(w, http.StatusOK, info)
}

// AdminConfigHandler implements GET/PUT /api/v1/admin/config: the
// tenant-scoped tunable-threshold overrides described in SPEC_FULL §3,
// persisted through the Postgres-backed OverrideStore when configured.
type AdminConfigHandler struct {
	Overrides *config.OverrideStore
	Base      config.Config
}

func (h *AdminConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Overrides == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Config Store Unavailable", "no DATABASE_URL configured", r.URL.Path)
		return
	}
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		tenant = "default"
	}
	switch r.Method {
	case http.MethodGet:
		overrides, err := h.Overrides.Get(r.Context(), tenant)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Internal Error", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, config.Apply(h.Base, overrides))
	case http.MethodPut:
		var overrides map[string]float64
		if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
			writeProblem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error(), r.URL.Path)
			return
		}
		if err := h.Overrides.Save(r.Context(), tenant, overrides); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Internal Error", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, config.Apply(h.Base, overrides))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
