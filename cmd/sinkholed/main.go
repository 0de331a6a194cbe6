// Command sinkholed runs the filtering DNS resolver: a classic UDP DNS
// server that refuses or rewrites queries against a blocklist and
// forwards everything else to a single upstream resolver.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sinkholed/sinkhole/internal/api"
	"github.com/sinkholed/sinkhole/internal/config"
	"github.com/sinkholed/sinkhole/internal/logging"
	"github.com/sinkholed/sinkhole/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath string
	debug      bool
	jsonLogs   bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML config file")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&f.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	flag.Parse()
	return f
}

func run() error {
	flags := parseFlags()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flags.debug {
		cfg.Logging.Level = "DEBUG"
	}
	if flags.jsonLogs {
		cfg.Logging.Structured = true
	}

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: "json",
	})
	logger.Info("sinkholed starting",
		"listen_addr", cfg.Server.ListenAddr,
		"listen_port", cfg.Server.ListenPort,
		"upstream", cfg.Upstream.Servers[0],
		"blocked_response", cfg.BlockedResponse,
	)

	runner, err := server.NewRunner(logger, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("constructing resolver: %w", err)
	}
	defer runner.Close()

	var apiSrv *api.Server
	if cfg.API.Enabled {
		apiSrv = api.New(cfg, logger, runner.Matcher, runner.Stats, runner.Reload)
		logger.Info("admin API starting", "addr", apiSrv.Addr())
		go func() {
			if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin API server error", "error", err)
			}
		}()
	}

	ctx := context.Background()
	runErr := runner.Run(ctx)

	if apiSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = apiSrv.Shutdown(shutdownCtx)
		cancel()
	}

	if runErr != nil {
		return fmt.Errorf("resolver exited with error: %w", runErr)
	}
	return nil
}
