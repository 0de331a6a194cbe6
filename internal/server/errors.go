package server

import "errors"

// Sentinel error kinds that are not already defined closer to their
// origin (upstream.Err* live in internal/upstream, reload.ErrReloadRead
// lives in internal/reload).
var (
	ErrConfigInvalid = errors.New("server: invalid configuration")
	ErrBindFailure   = errors.New("server: failed to bind listen socket")
)
