/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/storagemodels"
)

// RetryPolicy decides whether a failed raw operation is retried and how long
// to wait before the next attempt. It holds no per-call state.
type RetryPolicy struct {
	cfg     storagemodels.RetryConfig
	pattern *regexp.Regexp
}

// NewRetryPolicy validates cfg and compiles its retryable error pattern.
func NewRetryPolicy(cfg storagemodels.RetryConfig) (*RetryPolicy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &RetryPolicy{cfg: cfg}
	if cfg.Enabled && cfg.RetryableErrorPattern != "" {
		re, err := regexp.Compile(cfg.RetryableErrorPattern)
		if err != nil {
			return nil, errors.NewValidationError("RetryableErrorPattern", err.Error())
		}
		p.pattern = re
	}
	return p, nil
}

// DisabledRetryPolicy returns a policy that never retries.
func DisabledRetryPolicy() *RetryPolicy {
	return &RetryPolicy{}
}

// Config returns the configuration the policy was built from.
func (p *RetryPolicy) Config() storagemodels.RetryConfig {
	return p.cfg
}

// ShouldRetry reports whether the attempt-th failure (0-based) may be retried.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	return p.eligible(err) && attempt < p.cfg.MaxRetryCount
}

// NextBackoff returns min(initial * 2^attempt, max).
func (p *RetryPolicy) NextBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	ceiling := p.cfg.MaxRetryInterval
	exp := float64(p.cfg.InitialRetryInterval) * math.Pow(2, float64(attempt))
	if exp > float64(ceiling) || math.IsInf(exp, 0) { // overflow guard
		return ceiling
	}
	return time.Duration(exp)
}

// eligible reports whether err is the kind of error this policy retries,
// ignoring the attempt ceiling.
func (p *RetryPolicy) eligible(err error) bool {
	if err == nil || !p.cfg.Enabled {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.pattern == nil {
		return true
	}
	for _, e := range errorChain(err) {
		if p.pattern.MatchString(fmt.Sprintf("%T", e)) || p.pattern.MatchString(e.Error()) {
			return true
		}
	}
	return false
}

// errorChain flattens err and everything it wraps, depth first.
func errorChain(err error) []error {
	var chain []error
	stack := []error{err}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e == nil {
			continue
		}
		chain = append(chain, e)
		switch u := e.(type) {
		case interface{ Unwrap() error }:
			stack = append(stack, u.Unwrap())
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			for i := len(errs) - 1; i >= 0; i-- {
				stack = append(stack, errs[i])
			}
		}
	}
	return chain
}
