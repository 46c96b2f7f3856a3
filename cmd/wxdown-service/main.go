package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wechat-article/wxdown-service/internal/adapters/decoders/wxcred"
	"github.com/wechat-article/wxdown-service/internal/adapters/storage/jsonfile"
	"github.com/wechat-article/wxdown-service/internal/domain"
	"github.com/wechat-article/wxdown-service/internal/infrastructure/browser"
	cfgpkg "github.com/wechat-article/wxdown-service/internal/infrastructure/config"
	"github.com/wechat-article/wxdown-service/internal/infrastructure/fileserver"
	"github.com/wechat-article/wxdown-service/internal/infrastructure/httpapi"
	"github.com/wechat-article/wxdown-service/internal/infrastructure/interceptor"
	obs "github.com/wechat-article/wxdown-service/internal/infrastructure/observability"
	"github.com/wechat-article/wxdown-service/internal/infrastructure/sysproxy"
	"github.com/wechat-article/wxdown-service/internal/lifecycle"
	"github.com/wechat-article/wxdown-service/internal/usecase"
)

func main() {
	root := &cobra.Command{
		Use:   "wxdown-service",
		Short: "Local credential sniffer and exporter for WeChat Official Account articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the interception proxy and the local API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	})

	var exportOut string
	exportCmd := &cobra.Command{
		Use:   "export <url>",
		Short: "Render one article URL to PDF and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(args[0], exportOut)
		},
	}
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output PDF path")
	root.AddCommand(exportCmd)

	credsCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Inspect the persisted capture log",
	}
	credsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List extracted credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredentialsList()
		},
	})
	credsCmd.AddCommand(&cobra.Command{
		Use:   "remove <biz>",
		Short: "Remove every capture for a biz id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgpkg.FromEnv()
			if !jsonfile.New(cfg.StorePath).RemoveByBiz(args[0]) {
				return fmt.Errorf("store not updated; inspect %s", cfg.StorePath)
			}
			return nil
		},
	})
	root.AddCommand(credsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe() error {
	cfg := cfgpkg.FromEnv()
	logger := obs.NewLogger(cfg.LogLevel, cfg.DevMode)
	logger.Info().Str("addr", cfg.Addr).Msg("starting wxdown-service")

	metrics := obs.NewMetrics()
	store := jsonfile.New(cfg.StorePath)
	sys := sysproxy.New(cfg.NetworkService)
	session := interceptor.NewSession(cfg, logger, metrics, store, sys)
	coord := lifecycle.NewCoordinator(logger, metrics)
	files := fileserver.NewManager(logger, metrics, coord)
	renderer := browser.NewRenderer(logger, cfg.BrowserHeadless, cfg.BrowserBin)
	coord.RegisterBrowser(renderer)
	monitor := httpapi.NewMonitorHub()
	session.OnCapture(func(s domain.CapturedSession) {
		monitor.Broadcast(httpapi.MonitorEvent{Type: "captured", Biz: s.BizID})
	})

	deps := &httpapi.Deps{
		Cfg:     cfg,
		Logger:  logger,
		Metrics: metrics,
		Svc:     usecase.NewCredentialService(store, wxcred.NewParser(cfg.AvatarProxyBase)),
		Session: session,
		Files:   files,
		Browser: renderer,
		Monitor: monitor,
	}

	if port, err := session.Start(); err != nil {
		logger.Error().Err(err).Msg("interception proxy start failed; credentials will not be captured")
	} else {
		logger.Info().Int("port", port).Msg("system proxy points at interception engine")
	}
	coord.RegisterProxySession(session.CloseEngine, sys.Clear)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouterWithDeps(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	// open the UI on start (best-effort)
	go func() {
		time.Sleep(300 * time.Millisecond)
		if cfg.DevMode {
			return
		}
		addr := cfg.Addr
		if strings.HasPrefix(addr, ":") {
			addr = "http://localhost" + addr
		} else if !strings.HasPrefix(addr, "http") {
			addr = fmt.Sprintf("http://%s", addr)
		}
		_ = openBrowser(addr + "/")
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	if err := coord.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("teardown finished with errors")
	}
	logger.Info().Msg("wxdown-service stopped")
	return nil
}

func runExport(url, out string) error {
	cfg := cfgpkg.FromEnv()
	logger := obs.NewLogger(cfg.LogLevel, true)
	if out == "" {
		out = filepath.Join(cfg.ExportDir, uuid.NewString()+".pdf")
	}
	renderer := browser.NewRenderer(logger, cfg.BrowserHeadless, cfg.BrowserBin)
	defer renderer.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := renderer.RenderPDF(ctx, url, out); err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runCredentialsList() error {
	cfg := cfgpkg.FromEnv()
	store := jsonfile.New(cfg.StorePath)
	raw, err := store.ReadRaw()
	if err != nil {
		return err
	}
	creds := wxcred.NewParser(cfg.AvatarProxyBase).Parse(raw, time.Now())
	if len(creds) == 0 {
		fmt.Println("no credentials captured")
		return nil
	}
	for _, c := range creds {
		state := "expired"
		if c.Valid {
			state = "valid"
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", c.BizID, c.DisplayName, c.CapturedAt, state)
	}
	return nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Start()
}
