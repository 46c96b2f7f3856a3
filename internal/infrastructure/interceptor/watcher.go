package interceptor

import (
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lqqyt2423/go-mitmproxy/proxy"
	"github.com/rs/zerolog"

	"github.com/wechat-article/wxdown-service/internal/adapters/storage/jsonfile"
	"github.com/wechat-article/wxdown-service/internal/domain"
	obs "github.com/wechat-article/wxdown-service/internal/infrastructure/observability"
	"github.com/wechat-article/wxdown-service/pkg/shared/redact"
)

// Account metadata embedded in article-page HTML.
var (
	nicknameRe = regexp.MustCompile(`var nickname\s*=\s*"([^"]*)"`)
	headImgRe  = regexp.MustCompile(`var round_head_img\s*=\s*"([^"]*)"`)
)

// watcher records credential-bearing article-page flows into the capture
// log. It also answers the liveness probe URL itself, which is what makes
// the sentinel check in VerifyActive work: a probe response produced here
// never contains the genuine upstream body.
type watcher struct {
	proxy.BaseAddon
	logger    *zerolog.Logger
	metrics   *obs.Metrics
	store     *jsonfile.Store
	hosts     []string
	probeURL  string
	onCapture func(domain.CapturedSession)
}

func (w *watcher) Request(f *proxy.Flow) {
	if w.probeURL != "" && f.Request.URL.String() == w.probeURL {
		f.Response = &proxy.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
			Body:       []byte("intercepted"),
		}
	}
}

func (w *watcher) Response(f *proxy.Flow) {
	u := f.Request.URL
	if !w.watchedHost(u.Host) {
		return
	}
	q := u.Query()
	if q.Get("__biz") == "" || q.Get("key") == "" {
		return
	}
	cookie := f.Request.Header.Get("Cookie")
	var name, avatar string
	if f.Response != nil {
		if body, err := f.Response.DecodedBody(); err == nil {
			if m := nicknameRe.FindSubmatch(body); m != nil {
				name = string(m[1])
			}
			if m := headImgRe.FindSubmatch(body); m != nil {
				avatar = string(m[1])
			}
		}
	}
	sess := domain.CapturedSession{
		ID:              uuid.NewString(),
		BizID:           q.Get("__biz"),
		PageURL:         u.String(),
		SetCookieHeader: cookie,
		CapturedAt:      time.Now().UnixMilli(),
		DisplayName:     name,
		AvatarURL:       avatar,
	}
	if err := w.store.Append(sess); err != nil {
		w.logger.Error().Err(err).Str("biz", sess.BizID).Msg("capture append failed")
		return
	}
	w.metrics.CapturesTotal.Inc()
	w.logger.Info().
		Str("biz", sess.BizID).
		Str("name", name).
		Str("url", redact.URL(sess.PageURL)).
		Str("cookie", redact.Cookie(sess.SetCookieHeader)).
		Msg("credential session captured")
	if w.onCapture != nil {
		w.onCapture(sess)
	}
}

func (w *watcher) watchedHost(host string) bool {
	h := host
	if strings.Contains(h, ":") {
		if v, _, err := net.SplitHostPort(h); err == nil {
			h = v
		}
	}
	h = strings.ToLower(h)
	for _, want := range w.hosts {
		want = strings.ToLower(strings.TrimSpace(want))
		if want != "" && (h == want || strings.HasSuffix(h, "."+want)) {
			return true
		}
	}
	return false
}
