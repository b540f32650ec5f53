// SPDX-FileCopyrightText: 2025 NetCracker Technology Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package retry provides a minimal polling helper used by the e2e suites and
// mage targets to wait on external systems converging.
package retry

import (
	"context"
	"fmt"
	"time"
)

// UntilItSucceeds invokes fn every interval until fn returns nil or ctx is
// done. The last error returned by fn is wrapped into the context error so
// callers can see why the wait never converged.
func UntilItSucceeds(ctx context.Context, fn func() error, interval time.Duration) error {
	var lastErr error

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if lastErr = fn(); lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: last attempt: %w", ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}
