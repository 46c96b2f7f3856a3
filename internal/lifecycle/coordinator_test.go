package lifecycle

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	obs "github.com/wechat-article/wxdown-service/internal/infrastructure/observability"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newTestCoordinator() *Coordinator {
	logger := zerolog.New(io.Discard)
	return NewCoordinator(&logger, obs.NewMetrics())
}

func TestShutdownRunsStepsInOrder(t *testing.T) {
	c := newTestCoordinator()
	var order []string
	c.RegisterProxySession(
		func() error { order = append(order, "engine"); return nil },
		func() error { order = append(order, "sysproxy"); return nil },
	)
	c.RegisterBrowser(closerFunc(func() error { order = append(order, "browser"); return nil }))
	c.RegisterFileServer("/a", closerFunc(func() error { order = append(order, "files:/a"); return nil }))
	c.RegisterFileServer("/b", closerFunc(func() error { order = append(order, "files:/b"); return nil }))

	if err := c.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	want := []string{"engine", "sysproxy", "browser", "files:/a", "files:/b"}
	if len(order) != len(want) {
		t.Fatalf("steps: got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("steps: got %v want %v", order, want)
		}
	}
}

func TestShutdownContinuesPastFailures(t *testing.T) {
	c := newTestCoordinator()
	var ran []string
	engineErr := errors.New("engine stuck")
	c.RegisterProxySession(
		func() error { ran = append(ran, "engine"); return engineErr },
		func() error { ran = append(ran, "sysproxy"); return errors.New("no permission") },
	)
	c.RegisterFileServer("/a", closerFunc(func() error { ran = append(ran, "files"); return nil }))

	err := c.Shutdown()
	if err == nil {
		t.Fatalf("want aggregate error")
	}
	if !errors.Is(err, engineErr) {
		t.Fatalf("aggregate must carry step errors, got %v", err)
	}
	if len(ran) != 3 {
		t.Fatalf("all steps must run despite failures, ran %v", ran)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	c := newTestCoordinator()
	calls := 0
	c.RegisterBrowser(closerFunc(func() error { calls++; return nil }))
	if err := c.Shutdown(); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := c.Shutdown(); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
	if calls != 1 {
		t.Fatalf("browser closed %d times", calls)
	}
}

func TestRegisterFileServerReplacesSameRoot(t *testing.T) {
	c := newTestCoordinator()
	closed := ""
	c.RegisterFileServer("/a", closerFunc(func() error { closed = "old"; return nil }))
	c.RegisterFileServer("/a", closerFunc(func() error { closed = "new"; return nil }))
	if err := c.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if closed != "new" {
		t.Fatalf("latest registration must win, closed %q", closed)
	}
}
