package httpapi

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type exportRequest struct {
	URL    string `json:"url"`
	Output string `json:"output,omitempty"`
}

// handleExport renders one article URL to PDF through the headless
// browser. Output defaults to <ExportDir>/<uuid>.pdf.
func (d *Deps) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in exportRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", "invalid json", nil)
		return
	}
	if !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
		writeError(w, http.StatusBadRequest, "BAD_URL", "url must be absolute http(s)", nil)
		return
	}
	out := in.Output
	if out == "" {
		out = filepath.Join(d.Cfg.ExportDir, uuid.NewString()+".pdf")
	}
	if err := d.Browser.RenderPDF(r.Context(), in.URL, out); err != nil {
		d.Metrics.ExportsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "EXPORT_FAILED", err.Error(), map[string]any{"url": in.URL})
		return
	}
	d.Metrics.ExportsTotal.WithLabelValues("ok").Inc()
	if d.Monitor != nil {
		d.Monitor.Broadcast(MonitorEvent{Type: "exported", Ref: out})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"output": out})
}

type assetsRequest struct {
	Root string `json:"root"`
}

// handleAcquireAssets binds (or reuses) the sandboxed asset server for a
// root directory and returns its loopback URL.
func (d *Deps) handleAcquireAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in assetsRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", "invalid json", nil)
		return
	}
	if in.Root == "" {
		writeError(w, http.StatusBadRequest, "BAD_ROOT", "root is required", nil)
		return
	}
	inst, err := d.Files.Acquire(in.Root)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ASSETS_BIND_FAILED", err.Error(), map[string]any{"root": in.Root})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"root": inst.Root(),
		"port": inst.Port(),
		"url":  inst.URL(),
	})
}
