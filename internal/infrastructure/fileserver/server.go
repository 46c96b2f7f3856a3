package fileserver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	obs "github.com/wechat-article/wxdown-service/internal/infrastructure/observability"
)

const defaultContentType = "application/octet-stream"

// Deterministic extension table; no content sniffing. Unknown extensions
// fall back to a generic binary type.
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".htm":   "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "application/javascript",
	".mjs":   "application/javascript",
	".json":  "application/json",
	".txt":   "text/plain; charset=utf-8",
	".xml":   "text/xml; charset=utf-8",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".pdf":   "application/pdf",
	".mp3":   "audio/mpeg",
	".mp4":   "video/mp4",
}

// Registrar receives every bound instance so teardown can reach it.
type Registrar interface {
	RegisterFileServer(root string, h io.Closer)
}

// Instance serves exactly one root directory on a loopback ephemeral port.
type Instance struct {
	root    string
	ln      net.Listener
	srv     *http.Server
	logger  *zerolog.Logger
	metrics *obs.Metrics
}

func (i *Instance) Root() string { return i.root }

func (i *Instance) Port() int {
	return i.ln.Addr().(*net.TCPAddr).Port
}

func (i *Instance) URL() string {
	return "http://127.0.0.1:" + strconv.Itoa(i.Port())
}

func (i *Instance) Close() error {
	return i.srv.Close()
}

// ServeHTTP resolves the decoded request path inside the root and serves
// the file. The containment check runs on the normalized join result
// before any filesystem access, so traversal sequences (plain or
// percent-encoded) cannot escape the root.
func (i *Instance) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	full := filepath.Clean(filepath.Join(i.root, filepath.FromSlash(r.URL.Path)))
	if full != i.root && !strings.HasPrefix(full, i.root+string(os.PathSeparator)) {
		i.reply(w, http.StatusForbidden, "text/plain; charset=utf-8", []byte("forbidden"))
		return
	}
	if st, err := os.Stat(full); err == nil && st.IsDir() {
		full = filepath.Join(full, "index.html")
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		i.reply(w, http.StatusNotFound, "text/plain; charset=utf-8", []byte("not found"))
		return
	}
	if err != nil {
		i.reply(w, http.StatusInternalServerError, "text/plain; charset=utf-8", []byte(fmt.Sprintf("read error: %v", err)))
		return
	}
	ct, ok := contentTypes[strings.ToLower(filepath.Ext(full))]
	if !ok {
		ct = defaultContentType
	}
	i.reply(w, http.StatusOK, ct, data)
}

func (i *Instance) reply(w http.ResponseWriter, status int, ct string, body []byte) {
	if i.metrics != nil {
		i.metrics.FileRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Manager hands out at most one Instance per canonical root for the life
// of the process.
type Manager struct {
	mu        sync.Mutex
	logger    *zerolog.Logger
	metrics   *obs.Metrics
	registrar Registrar
	servers   map[string]*Instance
}

func NewManager(logger *zerolog.Logger, metrics *obs.Metrics, reg Registrar) *Manager {
	return &Manager{
		logger:    logger,
		metrics:   metrics,
		registrar: reg,
		servers:   make(map[string]*Instance),
	}
}

// Acquire returns the existing instance for root, or binds a new loopback
// listener on an OS-assigned port and registers it for teardown.
func (m *Manager) Acquire(root string) (*Instance, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs = filepath.Clean(abs)

	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.servers[abs]; ok {
		return inst, nil
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	inst := &Instance{root: abs, ln: ln, logger: m.logger, metrics: m.metrics}
	inst.srv = &http.Server{Handler: inst}
	go func() {
		if err := inst.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Str("root", abs).Msg("asset server stopped")
		}
	}()
	m.servers[abs] = inst
	if m.registrar != nil {
		m.registrar.RegisterFileServer(abs, inst)
	}
	m.logger.Info().Str("root", abs).Int("port", inst.Port()).Msg("asset server bound")
	return inst, nil
}
