package httpapi

import (
	"encoding/json"
	"net/http"
)

func (d *Deps) handleProxyStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	port, err := d.Session.Start()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "PROXY_START_FAILED", err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"running": true, "port": port})
}

func (d *Deps) handleProxyStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := d.Session.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, "PROXY_STOP_FAILED", err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"running": false})
}

// handleProxyStatus reports engine state plus the liveness probe result.
// The probe goes out through whatever proxy the OS currently reports,
// so a cleared system proxy yields active=false with no network call.
func (d *Deps) handleProxyStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"running": d.Session.Running(),
		"port":    d.Session.Port(),
		"active":  d.Session.VerifyActive(r.Context()),
	})
}
