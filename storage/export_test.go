/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storage

import "github.com/prometheus/client_golang/prometheus/testutil"

// OperationCount reads the operations counter for op and outcome.
func OperationCount(op, outcome string) float64 {
	return testutil.ToFloat64(operationsTotal.WithLabelValues(op, outcome))
}
