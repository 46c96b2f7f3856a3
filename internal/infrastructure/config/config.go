package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr            string
	LogLevel        string
	DevMode         bool
	CORSAllowOrigin string

	// Capture log (JSON array of captured sessions)
	StorePath string

	// Interception proxy engine
	ProxyAddr    string   // listen address for the MITM engine
	CaptureHosts []string // host suffixes whose traffic is recorded

	// System proxy configuration
	NetworkService string // macOS network service name for networksetup

	// Interception liveness probe. The sentinel is the body fragment the
	// real endpoint serves; seeing it means traffic is NOT intercepted.
	ProbeURL      string
	ProbeSentinel string
	ProbeTimeout  time.Duration

	// Credential presentation
	AvatarProxyBase string

	// PDF export
	ExportDir       string
	BrowserBin      string
	BrowserHeadless bool
}

func FromEnv() Config {
	// optional .env next to the binary; absence is the normal case
	_ = godotenv.Load()

	cfg := Config{
		Addr:            getEnv("ADDR", ":8093"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin: getEnv("CORS_ALLOW_ORIGIN", "*"),
		StorePath:       getEnv("STORE_PATH", "data/sessions.json"),
		ProxyAddr:       getEnv("PROXY_ADDR", "127.0.0.1:29219"),
		NetworkService:  getEnv("NETWORK_SERVICE", "Wi-Fi"),
		ProbeURL:        getEnv("PROBE_URL", "http://detectportal.firefox.com/success.txt"),
		ProbeSentinel:   getEnv("PROBE_SENTINEL", "success"),
		ProbeTimeout:    time.Duration(getEnvInt("PROBE_TIMEOUT_SEC", 5)) * time.Second,
		AvatarProxyBase: getEnv("AVATAR_PROXY_BASE", ""),
		ExportDir:       getEnv("EXPORT_DIR", "exports"),
		BrowserBin:      getEnv("BROWSER_BIN", ""),
	}
	if os.Getenv("DEV_MODE") == "1" || os.Getenv("DEV_MODE") == "true" {
		cfg.DevMode = true
	}
	cfg.CaptureHosts = []string{"mp.weixin.qq.com"}
	if v := strings.TrimSpace(os.Getenv("CAPTURE_HOSTS")); v != "" {
		cfg.CaptureHosts = splitCSV(v)
	}
	// headless by default; disable for debugging render issues
	if os.Getenv("BROWSER_HEADLESS") == "0" || os.Getenv("BROWSER_HEADLESS") == "false" {
		cfg.BrowserHeadless = false
	} else {
		cfg.BrowserHeadless = true
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// splitCSV splits comma-separated tokens trimming whitespace and skipping empties.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
