package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/devintel/devgraph/internal/api"
	"github.com/devintel/devgraph/internal/logging"
)

var (
	serveAddr    string
	serveLogFile string
	serveJSON    bool
	serveOpen    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recommendation HTTP server",
	Long: `Start the HTTP API. Endpoints:

  GET  /healthz
  GET  /recommend/{node}?limit=N
  GET  /metrics/{node}
  GET  /predict/{user}
  POST /fetch
  GET  /enrich/{username}`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "write logs to this file as well as stderr")
	serveCmd.Flags().BoolVar(&serveJSON, "json-logs", false, "emit JSON logs")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "open the health endpoint in a browser once listening")
}

func runServe(cmd *cobra.Command, args []string) error {
	level := "info"
	if verbose {
		level = "debug"
	}
	slogger, err := logging.New(logging.Config{
		Level:      level,
		OutputFile: serveLogFile,
		JSONFormat: serveJSON,
	})
	if err != nil {
		return err
	}
	defer slogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := newApp(ctx, cfg, slogger.Slog())
	if err != nil {
		return err
	}
	defer application.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	server := api.NewServer(addr, application.service, application.enricher, slogger.Slog())

	if serveOpen {
		go func() {
			url := fmt.Sprintf("http://localhost%s/healthz", addr)
			if !strings.HasPrefix(addr, ":") {
				url = fmt.Sprintf("http://%s/healthz", addr)
			}
			if err := browser.OpenURL(url); err != nil {
				slogger.Slog().Warn("could not open browser", "error", err)
			}
		}()
	}

	return server.ListenAndServe(ctx)
}
