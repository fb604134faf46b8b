/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storage

import (
	"context"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/storagemodels"
)

// ConsistencyGuard blocks until the observable state of the storage backend
// matches an expectation, or gives up.
type ConsistencyGuard interface {
	WaitTillFileAppears(ctx context.Context, path string) error
	WaitTillFileDisappears(ctx context.Context, path string) error
	WaitTillAllFilesAppear(ctx context.Context, dir string, files []string) error
	WaitTillAllFilesDisappear(ctx context.Context, dir string, files []string) error
}

// NewConsistencyGuard builds the guard described by cfg on top of fs.
func NewConsistencyGuard(fsys FileSystem, cfg storagemodels.GuardConfig, logger *slog.Logger) (ConsistencyGuard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case storagemodels.GuardPolling:
		return NewPollingGuard(fsys, cfg, logger)
	case storagemodels.GuardOptimistic:
		return NewOptimisticGuard(fsys, cfg, logger), nil
	default:
		return NoOpGuard{}, nil
	}
}

// NoOpGuard is used for backends with read-after-write consistency.
type NoOpGuard struct{}

func (NoOpGuard) WaitTillFileAppears(context.Context, string) error    { return nil }
func (NoOpGuard) WaitTillFileDisappears(context.Context, string) error { return nil }
func (NoOpGuard) WaitTillAllFilesAppear(context.Context, string, []string) error {
	return nil
}
func (NoOpGuard) WaitTillAllFilesDisappear(context.Context, string, []string) error {
	return nil
}

// checkFunc reports whether the awaited condition currently holds.
type checkFunc func(ctx context.Context) (bool, error)

// PollingGuard re-checks the raw filesystem with exponential backoff until
// the condition holds, MaxChecks is used up or MaxWait elapses.
type PollingGuard struct {
	fs     FileSystem
	cfg    storagemodels.GuardConfig
	logger *slog.Logger
}

// NewPollingGuard creates a polling guard. cfg.Kind is ignored.
func NewPollingGuard(fsys FileSystem, cfg storagemodels.GuardConfig, logger *slog.Logger) (*PollingGuard, error) {
	cfg.Kind = storagemodels.GuardPolling
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PollingGuard{
		fs:     fsys,
		cfg:    cfg,
		logger: logger.With("component", "consistency_guard", "guard", "polling"),
	}, nil
}

func (g *PollingGuard) WaitTillFileAppears(ctx context.Context, p string) error {
	return g.waitFor(ctx, p, string(storagemodels.VisibilityAppear), existsCheck(g.fs, p, true))
}

func (g *PollingGuard) WaitTillFileDisappears(ctx context.Context, p string) error {
	return g.waitFor(ctx, p, string(storagemodels.VisibilityDisappear), existsCheck(g.fs, p, false))
}

func (g *PollingGuard) WaitTillAllFilesAppear(ctx context.Context, dir string, files []string) error {
	return g.waitFor(ctx, dir, "all files "+string(storagemodels.VisibilityAppear), listingCheck(g.fs, dir, files, true))
}

func (g *PollingGuard) WaitTillAllFilesDisappear(ctx context.Context, dir string, files []string) error {
	return g.waitFor(ctx, dir, "all files "+string(storagemodels.VisibilityDisappear), listingCheck(g.fs, dir, files, false))
}

func (g *PollingGuard) waitFor(ctx context.Context, p, condition string, check checkFunc) error {
	start := time.Now()
	deadline := start.Add(g.cfg.MaxWait)
	interval := g.cfg.InitialCheckInterval

	for checks := 1; ; checks++ {
		consistencyChecksTotal.WithLabelValues(condition).Inc()
		ok, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return g.cancelled(condition, p, start, ctx.Err())
			}
			return err
		}
		if ok {
			consistencyWaitSeconds.WithLabelValues(condition, outcomeOK).Observe(time.Since(start).Seconds())
			return nil
		}

		remaining := time.Until(deadline)
		if checks >= g.cfg.MaxChecks || remaining <= 0 {
			waited := time.Since(start)
			consistencyWaitSeconds.WithLabelValues(condition, outcomeTimeout).Observe(waited.Seconds())
			g.logger.Error("consistency check did not converge",
				"path", p, "condition", condition, "checks", checks, "waited", waited)
			return errors.NewConsistencyTimeoutError(p, condition, checks, waited)
		}

		sleep := min(interval, remaining)
		select {
		case <-ctx.Done():
			return g.cancelled(condition, p, start, ctx.Err())
		case <-time.After(sleep):
		}
		interval = min(interval*2, g.cfg.MaxCheckInterval)
	}
}

func (g *PollingGuard) cancelled(condition, p string, start time.Time, cause error) error {
	consistencyWaitSeconds.WithLabelValues(condition, outcomeCancelled).Observe(time.Since(start).Seconds())
	return errors.NewCancelledError("wait till "+condition, p, cause)
}

// OptimisticGuard checks once, sleeps a fixed time if the condition does not
// hold yet, and then returns success regardless.
type OptimisticGuard struct {
	fs     FileSystem
	wait   time.Duration
	logger *slog.Logger
}

// NewOptimisticGuard creates an optimistic guard sleeping cfg.OptimisticWait.
func NewOptimisticGuard(fsys FileSystem, cfg storagemodels.GuardConfig, logger *slog.Logger) *OptimisticGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &OptimisticGuard{
		fs:     fsys,
		wait:   cfg.OptimisticWait,
		logger: logger.With("component", "consistency_guard", "guard", "optimistic"),
	}
}

func (g *OptimisticGuard) WaitTillFileAppears(ctx context.Context, p string) error {
	return g.waitFor(ctx, p, string(storagemodels.VisibilityAppear), existsCheck(g.fs, p, true))
}

func (g *OptimisticGuard) WaitTillFileDisappears(ctx context.Context, p string) error {
	return g.waitFor(ctx, p, string(storagemodels.VisibilityDisappear), existsCheck(g.fs, p, false))
}

func (g *OptimisticGuard) WaitTillAllFilesAppear(ctx context.Context, dir string, files []string) error {
	return g.waitFor(ctx, dir, "all files "+string(storagemodels.VisibilityAppear), listingCheck(g.fs, dir, files, true))
}

func (g *OptimisticGuard) WaitTillAllFilesDisappear(ctx context.Context, dir string, files []string) error {
	return g.waitFor(ctx, dir, "all files "+string(storagemodels.VisibilityDisappear), listingCheck(g.fs, dir, files, false))
}

func (g *OptimisticGuard) waitFor(ctx context.Context, p, condition string, check checkFunc) error {
	consistencyChecksTotal.WithLabelValues(condition).Inc()
	ok, err := check(ctx)
	if err != nil || ok {
		return err
	}

	select {
	case <-ctx.Done():
		return errors.NewCancelledError("wait till "+condition, p, ctx.Err())
	case <-time.After(g.wait):
	}

	consistencyChecksTotal.WithLabelValues(condition).Inc()
	ok, err = check(ctx)
	if err != nil {
		return err
	}
	if !ok {
		g.logger.Warn("path still not consistent after optimistic wait",
			"path", p, "condition", condition, "waited", g.wait)
	}
	return nil
}

// existsCheck holds when the existence of p equals want.
func existsCheck(fsys FileSystem, p string, want bool) checkFunc {
	return func(ctx context.Context) (bool, error) {
		exists, err := fsys.Exists(ctx, p)
		if err != nil {
			return false, err
		}
		return exists == want, nil
	}
}

// listingCheck holds when every expected file is present in (want=true) or
// absent from (want=false) a listing of dir. A missing dir lists as empty.
func listingCheck(fsys FileSystem, dir string, files []string, want bool) checkFunc {
	return func(ctx context.Context) (bool, error) {
		entries, err := fsys.List(ctx, dir)
		if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		listed := make(map[string]struct{}, len(entries))
		for _, e := range entries {
			listed[path.Base(strings.TrimSuffix(e.Path, "/"))] = struct{}{}
		}
		for _, f := range files {
			_, present := listed[path.Base(f)]
			if present != want {
				return false, nil
			}
		}
		return true, nil
	}
}
