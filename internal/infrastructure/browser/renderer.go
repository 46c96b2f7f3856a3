// Package browser renders article pages to PDF through a headless
// Chromium controlled with rod. The browser process is launched lazily
// on the first render and lives until Close.
package browser

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

type Renderer struct {
	logger   *zerolog.Logger
	headless bool
	bin      string

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func NewRenderer(logger *zerolog.Logger, headless bool, bin string) *Renderer {
	return &Renderer{logger: logger, headless: headless, bin: bin}
}

func (r *Renderer) ensureLaunched() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}
	l := launcher.New().Headless(r.headless)
	if r.bin != "" {
		l = l.Bin(r.bin)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, err
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, err
	}
	r.launcher = l
	r.browser = b
	r.logger.Info().Bool("headless", r.headless).Msg("render browser launched")
	return b, nil
}

// RenderPDF navigates to pageURL, waits for the load event, and writes
// the printed PDF to outPath, creating parent directories as needed.
func (r *Renderer) RenderPDF(ctx context.Context, pageURL, outPath string) error {
	b, err := r.ensureLaunched()
	if err != nil {
		return err
	}
	page, err := b.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return err
	}
	defer page.Close()
	page = page.Context(ctx)
	if err := page.WaitLoad(); err != nil {
		return err
	}
	pdf, err := page.PDF(&proto.PagePrintToPDF{PrintBackground: true})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, pdf); err != nil {
		return err
	}
	r.logger.Info().Str("url", pageURL).Str("out", outPath).Msg("article rendered")
	return nil
}

// Close shuts the browser process down. Safe to call without a prior
// launch and safe to call twice.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.launcher.Cleanup()
	r.browser = nil
	r.launcher = nil
	return err
}
