package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wechat-article/wxdown-service/internal/infrastructure/browser"
	"github.com/wechat-article/wxdown-service/internal/infrastructure/config"
	"github.com/wechat-article/wxdown-service/internal/infrastructure/fileserver"
	"github.com/wechat-article/wxdown-service/internal/infrastructure/interceptor"
	obs "github.com/wechat-article/wxdown-service/internal/infrastructure/observability"
	"github.com/wechat-article/wxdown-service/internal/usecase"
)

type Deps struct {
	Cfg     config.Config
	Logger  *zerolog.Logger
	Metrics *obs.Metrics
	Svc     *usecase.CredentialService
	Session *interceptor.Session
	Files   *fileserver.Manager
	Browser *browser.Renderer
	Monitor *MonitorHub
}

func NewRouterWithDeps(d *Deps) http.Handler {
	return withCORS(d.Cfg, buildBaseMux(d))
}

func buildBaseMux(d *Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":    "wxdown-service",
			"version": obs.Version,
			"time":    time.Now().UTC(),
		})
	})

	// credentials derived from the capture log
	mux.HandleFunc("/api/credentials", d.handleListCredentials)
	mux.HandleFunc("/api/credentials/", d.handleCredentialByBiz)

	// interception proxy control
	mux.HandleFunc("/api/proxy/start", d.handleProxyStart)
	mux.HandleFunc("/api/proxy/stop", d.handleProxyStop)
	mux.HandleFunc("/api/proxy/status", d.handleProxyStatus)

	// article export and local asset serving
	mux.HandleFunc("/api/export", d.handleExport)
	mux.HandleFunc("/api/assets", d.handleAcquireAssets)

	// capture event stream
	mux.HandleFunc("/api/monitor/ws", d.Monitor.HandleWS)

	return mux
}

func withCORS(cfg config.Config, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
