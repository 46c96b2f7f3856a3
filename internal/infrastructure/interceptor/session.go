package interceptor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lqqyt2423/go-mitmproxy/proxy"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"

	"github.com/wechat-article/wxdown-service/internal/adapters/storage/jsonfile"
	"github.com/wechat-article/wxdown-service/internal/domain"
	"github.com/wechat-article/wxdown-service/internal/infrastructure/config"
	obs "github.com/wechat-article/wxdown-service/internal/infrastructure/observability"
	"github.com/wechat-article/wxdown-service/internal/infrastructure/sysproxy"
)

// Session owns the interception engine and the system proxy pointer as a
// pair: Start brings both up, Stop clears the system-visible pointer
// before tearing down the engine it points at.
type Session struct {
	cfg     config.Config
	logger  *zerolog.Logger
	metrics *obs.Metrics
	store   *jsonfile.Store
	sys     sysproxy.Configurator

	mu        sync.Mutex
	engine    *proxy.Proxy
	port      int
	running   bool
	onCapture func(domain.CapturedSession)
}

func NewSession(cfg config.Config, logger *zerolog.Logger, metrics *obs.Metrics, store *jsonfile.Store, sys sysproxy.Configurator) *Session {
	return &Session{cfg: cfg, logger: logger, metrics: metrics, store: store, sys: sys}
}

// OnCapture installs a callback invoked for every recorded session.
// Must be set before Start.
func (s *Session) OnCapture(fn func(domain.CapturedSession)) {
	s.mu.Lock()
	s.onCapture = fn
	s.mu.Unlock()
}

// Start boots the engine on the configured address, points the OS proxy
// at it, and begins watching traffic. Returns the listening port.
func (s *Session) Start() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return s.port, nil
	}
	host, portStr, err := net.SplitHostPort(s.cfg.ProxyAddr)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, err
	}
	if host == "" {
		host = "127.0.0.1"
	}

	// Fail fast on an unavailable address. The engine binds inside its
	// own goroutine, so without this check a port conflict would surface
	// only after the OS proxy already points at a dead listener.
	ln, err := net.Listen("tcp", s.cfg.ProxyAddr)
	if err != nil {
		return 0, fmt.Errorf("proxy address unavailable: %w", err)
	}
	_ = ln.Close()

	// the engine logs through the global logrus; keep it from drowning
	// our own output
	logrus.SetLevel(logrus.WarnLevel)

	p, err := proxy.NewProxy(&proxy.Options{
		Addr:              s.cfg.ProxyAddr,
		StreamLargeBodies: 5 * 1024 * 1024,
		SslInsecure:       true,
	})
	if err != nil {
		return 0, err
	}
	p.AddAddon(&watcher{
		logger:    s.logger,
		metrics:   s.metrics,
		store:     s.store,
		hosts:     s.cfg.CaptureHosts,
		probeURL:  s.cfg.ProbeURL,
		onCapture: s.onCapture,
	})
	errCh := make(chan error, 1)
	go func() {
		err := p.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("interception engine stopped")
		}
		errCh <- err
	}()
	if err := awaitListening(host, port, errCh); err != nil {
		_ = p.Close()
		return 0, err
	}

	if err := s.sys.Set(host, port); err != nil {
		_ = p.Close()
		return 0, err
	}
	s.engine = p
	s.port = port
	s.running = true
	s.logger.Info().Int("port", port).Msg("interception proxy started")
	return port, nil
}

// Stop clears the OS proxy pointer first, then shuts the engine down.
// Clearing first avoids leaving the system pointed at a dead listener
// when the engine refuses to stop.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	var errs []error
	if err := s.sys.Clear(); err != nil {
		s.logger.Warn().Err(err).Msg("clear system proxy failed")
		errs = append(errs, err)
	}
	if err := s.engine.Close(); err != nil {
		errs = append(errs, err)
	}
	s.engine = nil
	s.running = false
	s.logger.Info().Msg("interception proxy stopped")
	return errors.Join(errs...)
}

// CloseEngine stops only the engine. Used by the lifecycle coordinator,
// which sequences the system-proxy clear itself.
func (s *Session) CloseEngine() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	s.running = false
	return err
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Session) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// awaitListening blocks until the engine's listener accepts connections,
// the engine reports a startup error, or the wait times out. The OS
// proxy must never be pointed at an address nothing is accepting on.
func awaitListening(host string, port int, errCh <-chan error) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	deadline := time.Now().Add(3 * time.Second)
	for {
		select {
		case err := <-errCh:
			if err == nil || errors.Is(err, http.ErrServerClosed) {
				err = errors.New("interception engine exited before binding")
			}
			return err
		default:
		}
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("interception engine not listening on %s: %w", addr, err)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// VerifyActive reports whether outbound traffic actually flows through
// an interception proxy. With no system proxy configured it answers
// false without touching the network. Otherwise it fetches the probe
// endpoint through the configured proxy: the sentinel only appears in
// the genuine upstream body, so seeing it means interception is off.
// This is a liveness heuristic, not a certificate-trust check.
func (s *Session) VerifyActive(ctx context.Context) bool {
	cur, err := s.sys.Current()
	if err != nil || cur == "" {
		return false
	}
	proxyURL, err := url.Parse("http://" + cur)
	if err != nil {
		return false
	}
	timeout := s.cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		Timeout:   timeout,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.ProbeURL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		s.metrics.ProbeTotal.WithLabelValues("unreachable").Inc()
		return false
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		s.metrics.ProbeTotal.WithLabelValues("unreachable").Inc()
		return false
	}
	if strings.Contains(string(body), s.cfg.ProbeSentinel) {
		s.metrics.ProbeTotal.WithLabelValues("passthrough").Inc()
		return false
	}
	s.metrics.ProbeTotal.WithLabelValues("intercepted").Inc()
	return true
}
