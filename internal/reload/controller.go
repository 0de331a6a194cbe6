// Package reload implements the Reload Controller: on trigger,
// re-read the configured blocklist sources, build a fresh Policy, and
// atomically install it into the Matcher, without ever failing an
// in-flight query.
package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sinkholed/sinkhole/internal/loader"
	"github.com/sinkholed/sinkhole/internal/matcher"
)

// ErrReloadRead marks a reload-local failure: the old Policy is
// retained, and the failure is only logged.
var ErrReloadRead = errors.New("reload: failed to read blocklist source")

// SourceFunc produces the combined token list for a reload: local files,
// the optional remote-cache file, whatever the deployment configured.
// It returns an error if any configured source could not be read.
type SourceFunc func() ([]string, error)

// Controller drives the Matcher from SIGHUP (or a scheduled refresh,
// see cron.go) through Loader.BuildLogged to Matcher.Install.
//
// Reloads are serialized and coalesced: every reload, whether started by
// Run from the capacity-1 trigger channel or by ReloadNow, runs under
// one mutex, so at most one is in flight. While one reload is in
// flight, at most one more pending trigger can be queued; any
// additional triggers arriving in that window are dropped and
// coalesced into that one pending reload.
type Controller struct {
	Logger  *slog.Logger
	Matcher *matcher.Matcher
	Sources SourceFunc

	trigger chan struct{}
	mu      sync.Mutex
}

// New returns a ready Controller. Call Run in its own goroutine to start
// serving triggers.
func New(logger *slog.Logger, m *matcher.Matcher, sources SourceFunc) *Controller {
	return &Controller{
		Logger:  logger,
		Matcher: m,
		Sources: sources,
		trigger: make(chan struct{}, 1),
	}
}

// TriggerAsync requests a reload without blocking the caller (a signal
// handler, an HTTP handler, a cron tick). If a reload is already queued
// or in flight, the request coalesces into it.
func (c *Controller) TriggerAsync() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Run consumes trigger requests one at a time until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.trigger:
			c.doReload()
		}
	}
}

// ReloadNow runs one reload synchronously, bypassing the trigger channel.
// Used by the admin API's POST /filtering/reload and by tests.
func (c *Controller) ReloadNow() error {
	return c.doReload()
}

func (c *Controller) doReload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tokens, err := c.Sources()
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrReloadRead, err)
		c.log().Warn("reload failed, retaining previous policy", "error", wrapped)
		return wrapped
	}

	policy, dropped := loader.BuildLogged(tokens, c.Logger)
	c.Matcher.Install(policy)
	c.log().Info("blocklist reloaded", "entries", policy.Count(), "dropped_tokens", dropped)
	return nil
}

func (c *Controller) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
