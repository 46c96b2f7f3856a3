// Package lifecycle tracks every OS/network resource the service holds
// and releases all of them in one ordered, best-effort teardown pass.
// The coordinator is constructed by main and passed to the components
// that acquire resources; there is no package-level singleton.
package lifecycle

import (
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	obs "github.com/wechat-article/wxdown-service/internal/infrastructure/observability"
)

type Coordinator struct {
	mu      sync.Mutex
	logger  *zerolog.Logger
	metrics *obs.Metrics

	stopEngine    func() error
	clearSysProxy func() error
	browser       io.Closer
	fileRoots     []string // teardown in registration order
	fileServers   map[string]io.Closer
	done          bool
}

func NewCoordinator(logger *zerolog.Logger, metrics *obs.Metrics) *Coordinator {
	return &Coordinator{
		logger:      logger,
		metrics:     metrics,
		fileServers: make(map[string]io.Closer),
	}
}

// RegisterProxySession records how to stop the interception engine and
// how to clear the OS proxy pointer. They run as separate teardown steps.
func (c *Coordinator) RegisterProxySession(stopEngine, clearSysProxy func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopEngine = stopEngine
	c.clearSysProxy = clearSysProxy
}

func (c *Coordinator) RegisterBrowser(h io.Closer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.browser = h
}

func (c *Coordinator) RegisterFileServer(root string, h io.Closer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.fileServers[root]; !ok {
		c.fileRoots = append(c.fileRoots, root)
	}
	c.fileServers[root] = h
}

// Shutdown runs the teardown sequence: stop the interception engine,
// clear the OS proxy pointer, close the browser, close every file
// server. Every step runs regardless of earlier failures; failures are
// logged, counted, and folded into the aggregate return. A second call
// is a no-op.
func (c *Coordinator) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return nil
	}
	c.done = true

	var errs []error
	step := func(name string, fn func() error) {
		if fn == nil {
			return
		}
		if err := fn(); err != nil {
			c.logger.Warn().Err(err).Str("step", name).Msg("teardown step failed")
			if c.metrics != nil {
				c.metrics.ShutdownStepErrors.WithLabelValues(name).Inc()
			}
			errs = append(errs, err)
		}
	}

	step("stop_engine", c.stopEngine)
	step("clear_sysproxy", c.clearSysProxy)
	if c.browser != nil {
		step("close_browser", c.browser.Close)
	}
	for _, root := range c.fileRoots {
		step("close_fileserver", c.fileServers[root].Close)
	}

	c.stopEngine = nil
	c.clearSysProxy = nil
	c.browser = nil
	c.fileRoots = nil
	c.fileServers = map[string]io.Closer{}
	c.logger.Info().Int("errors", len(errs)).Msg("resource teardown complete")
	return errors.Join(errs...)
}
