package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wechat-article/wxdown-service/internal/adapters/decoders/wxcred"
	"github.com/wechat-article/wxdown-service/internal/adapters/storage/jsonfile"
	"github.com/wechat-article/wxdown-service/internal/domain"
	"github.com/wechat-article/wxdown-service/internal/infrastructure/config"
	"github.com/wechat-article/wxdown-service/internal/infrastructure/fileserver"
	"github.com/wechat-article/wxdown-service/internal/infrastructure/interceptor"
	obs "github.com/wechat-article/wxdown-service/internal/infrastructure/observability"
	"github.com/wechat-article/wxdown-service/internal/usecase"
)

type noSys struct{}

func (noSys) Set(host string, port int) error { return nil }
func (noSys) Clear() error                    { return nil }
func (noSys) Current() (string, error)        { return "", nil }

func startAppServer(t *testing.T) (*httptest.Server, *jsonfile.Store) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	metrics := obs.NewMetrics()
	cfg := config.Config{CORSAllowOrigin: "*", ProbeURL: "http://probe.invalid/", ProbeSentinel: "success"}
	store := jsonfile.New(filepath.Join(t.TempDir(), "sessions.json"))
	deps := &Deps{
		Cfg:     cfg,
		Logger:  &logger,
		Metrics: metrics,
		Svc:     usecase.NewCredentialService(store, wxcred.NewParser("")),
		Session: interceptor.NewSession(cfg, &logger, metrics, store, noSys{}),
		Files:   fileserver.NewManager(&logger, metrics, nil),
		Monitor: NewMonitorHub(),
	}
	srv := httptest.NewServer(NewRouterWithDeps(deps))
	t.Cleanup(srv.Close)
	return srv, store
}

func seedSession(t *testing.T, store *jsonfile.Store, biz string) {
	t.Helper()
	err := store.Append(domain.CapturedSession{
		BizID:           biz,
		PageURL:         "https://mp.weixin.qq.com/s?__biz=" + biz + "&uin=MTIz&key=k&pass_ticket=p",
		SetCookieHeader: "wap_sid2=abc;",
		CapturedAt:      time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestListCredentials(t *testing.T) {
	srv, store := startAppServer(t)
	seedSession(t, store, "bizA")
	seedSession(t, store, "bizB")

	resp, err := http.Get(srv.URL + "/api/credentials")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Items []domain.ParsedCredential `json:"items"`
		Total int                       `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 2 || len(out.Items) != 2 {
		t.Fatalf("want 2 credentials, got %+v", out)
	}
	if !out.Items[0].Valid {
		t.Fatalf("fresh capture must be valid: %+v", out.Items[0])
	}
}

func TestListCredentialsMalformedStoreIsEmpty(t *testing.T) {
	srv, store := startAppServer(t)
	if err := os.WriteFile(store.Path(), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := http.Get(srv.URL + "/api/credentials")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || out.Total != 0 {
		t.Fatalf("malformed store must degrade to empty: status=%d total=%d", resp.StatusCode, out.Total)
	}
}

func TestRemoveCredentialByBiz(t *testing.T) {
	srv, store := startAppServer(t)
	seedSession(t, store, "bizA")
	seedSession(t, store, "bizB")

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/credentials/bizA", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	listResp, err := http.Get(srv.URL + "/api/credentials")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer listResp.Body.Close()
	var out struct {
		Items []domain.ParsedCredential `json:"items"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].BizID != "bizB" {
		t.Fatalf("want only bizB left, got %+v", out.Items)
	}
}

func TestProxyStatusWithoutProxy(t *testing.T) {
	srv, _ := startAppServer(t)
	resp, err := http.Get(srv.URL + "/api/proxy/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Running bool `json:"running"`
		Active  bool `json:"active"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Running || out.Active {
		t.Fatalf("idle service must report running=false active=false: %+v", out)
	}
}

func TestAcquireAssetsEndpoint(t *testing.T) {
	srv, _ := startAppServer(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	body, _ := json.Marshal(map[string]string{"root": root})
	resp, err := http.Post(srv.URL+"/api/assets", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		URL  string `json:"url"`
		Port int    `json:"port"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Port == 0 || out.URL == "" {
		t.Fatalf("bad bind response: %+v", out)
	}
	fileResp, err := http.Get(out.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET asset: %v", err)
	}
	defer fileResp.Body.Close()
	data, _ := io.ReadAll(fileResp.Body)
	if string(data) != "hello" {
		t.Fatalf("asset body: %q", data)
	}
}
