package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// handleListCredentials runs the extraction pipeline over the capture
// log. Validity is recomputed on every call, so a credential that just
// crossed its window flips to invalid without any store change.
func (d *Deps) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	creds := d.Svc.List(time.Now())
	d.Metrics.ExtractionsTotal.Inc()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"items": creds, "total": len(creds)})
}

// handleCredentialByBiz removes every capture for the given biz id.
// path: /api/credentials/{biz}
func (d *Deps) handleCredentialByBiz(w http.ResponseWriter, r *http.Request) {
	biz := strings.TrimPrefix(r.URL.Path, "/api/credentials/")
	if biz == "" || strings.Contains(biz, "/") {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !d.Svc.Remove(biz) {
		writeError(w, http.StatusInternalServerError, "CREDENTIAL_REMOVE_FAILED", "store not updated; retry or inspect the capture log", map[string]any{"biz": biz})
		return
	}
	if d.Monitor != nil {
		d.Monitor.Broadcast(MonitorEvent{Type: "removed", Biz: biz})
	}
	w.WriteHeader(http.StatusNoContent)
}
