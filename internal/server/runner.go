package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sinkholed/sinkhole/internal/config"
	"github.com/sinkholed/sinkhole/internal/loader"
	"github.com/sinkholed/sinkhole/internal/matcher"
	"github.com/sinkholed/sinkhole/internal/reload"
	"github.com/sinkholed/sinkhole/internal/stats"
	"github.com/sinkholed/sinkhole/internal/store"
	"github.com/sinkholed/sinkhole/internal/synth"
	"github.com/sinkholed/sinkhole/internal/upstream"
)

// Runner wires the seven core components together and drives the
// process lifecycle: load the initial policy, start the UDP listener,
// start the Reload Controller and its triggers (SIGHUP, optional cron),
// and block until SIGTERM/SIGINT or a fatal component error.
type Runner struct {
	Logger *slog.Logger
	Config *config.Config
	Store  *store.Store // nil if config.Store.Enabled is false

	Matcher   *matcher.Matcher
	Stats     *stats.Stats
	Reload    *reload.Controller
	UDPServer *UDPServer
	CronSched *reload.CronScheduler
}

// NewRunner builds every core component from cfg but does not start
// anything; call Run to start serving.
func NewRunner(logger *slog.Logger, cfg *config.Config, promReg prometheus.Registerer) (*Runner, error) {
	denial, err := synth.ParseDenialPolicy(cfg.BlockedResponse)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	timeout := upstream.DefaultTimeout
	if cfg.Upstream.Timeout != "" {
		d, err := time.ParseDuration(cfg.Upstream.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: upstream.timeout: %v", ErrConfigInvalid, err)
		}
		timeout = d
	}

	m := matcher.New()
	st := stats.New(promReg)

	var st8 *store.Store
	if cfg.Store.Enabled {
		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("server: opening custom-entries store: %w", err)
		}
		st8 = s
	}

	rc := reload.New(logger, m, sourcesFunc(cfg, st8))

	var cronSched *reload.CronScheduler
	if cfg.Blocklist.RefreshCron != "" {
		cs, err := reload.NewCronScheduler(logger, rc, cfg.Blocklist.RefreshCron)
		if err != nil {
			return nil, err
		}
		cronSched = cs
	}

	h := &QueryHandler{
		Logger:     logger,
		Matcher:    m,
		Upstream:   upstream.New(cfg.Upstream.Servers[0], timeout),
		Denial:     denial,
		Stats:      st,
		LogBlocked: cfg.Logging.LogBlocked,
	}

	return &Runner{
		Logger:    logger,
		Config:    cfg,
		Store:     st8,
		Matcher:   m,
		Stats:     st,
		Reload:    rc,
		UDPServer: &UDPServer{Logger: logger, Handler: h},
		CronSched: cronSched,
	}, nil
}

// sourcesFunc builds the reload.SourceFunc that combines the configured
// local blocklist files (custom_list, then local_lists) with whatever
// the optional custom-entries store has persisted. remote_lists URLs
// and any remote-list cache file are not read.
func sourcesFunc(cfg *config.Config, st *store.Store) reload.SourceFunc {
	return func() ([]string, error) {
		var paths []string
		if cfg.Blocklist.CustomList != "" {
			paths = append(paths, cfg.Blocklist.CustomList)
		}
		paths = append(paths, cfg.Blocklist.LocalLists...)

		opts := loader.ReadOptions{EnableWildcards: cfg.Blocklist.EnableWildcards}
		tokens, err := loader.ReadFiles(paths, opts)
		if err != nil {
			return nil, err
		}

		if st != nil {
			stored, err := st.Tokens(context.Background())
			if err != nil {
				return nil, fmt.Errorf("server: reading custom-entries store: %w", err)
			}
			tokens = append(tokens, stored...)
		}
		return tokens, nil
	}
}

// Run performs the initial load, starts the UDP listener, the Reload
// Controller, and (if configured) the cron scheduler, then blocks until
// ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Reload.ReloadNow(); err != nil {
		r.log().Warn("initial blocklist load failed, starting with an empty policy", "error", err)
	}

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go r.Reload.Run(signalCtx)
	if r.CronSched != nil {
		go r.CronSched.Run(signalCtx)
	}
	go r.watchSIGHUP(signalCtx)

	addr := net.JoinHostPort(r.Config.Server.ListenAddr, strconv.Itoa(r.Config.Server.ListenPort))
	r.log().Info("listening", "addr", addr)
	return r.UDPServer.Run(signalCtx, addr)
}

func (r *Runner) watchSIGHUP(ctx context.Context) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	defer signal.Stop(sig)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			r.log().Info("SIGHUP received, triggering reload")
			r.Reload.TriggerAsync()
		}
	}
}

// Close releases resources Run doesn't own the lifecycle of (the
// custom-entries store, if opened).
func (r *Runner) Close() error {
	if r.Store != nil {
		return r.Store.Close()
	}
	return nil
}

func (r *Runner) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
