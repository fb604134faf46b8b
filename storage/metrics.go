/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomeExhausted = "exhausted"
	outcomeCancelled = "cancelled"
	outcomeTimeout   = "timeout"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lakeio_storage_operations_total",
		Help: "Total number of storage handle operations by outcome.",
	}, []string{"op", "outcome"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lakeio_storage_retries_total",
		Help: "Total number of raw operation retries.",
	}, []string{"op"})

	consistencyChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lakeio_consistency_checks_total",
		Help: "Total number of raw visibility checks issued by consistency guards.",
	}, []string{"condition"})

	consistencyWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lakeio_consistency_wait_seconds",
		Help:    "Time consistency guards spent waiting for convergence.",
		Buckets: prometheus.DefBuckets,
	}, []string{"condition", "outcome"})
)
