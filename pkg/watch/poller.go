// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package watch provides small polling helpers: Until, which the CLI's
// wait command uses to poll a server until it is healthy, and Channel,
// which drains a channel such as an async run's progress events.
package watch

import (
	"context"
	"time"
)

// DefaultPollInterval is the default interval between polls.
const DefaultPollInterval = 500 * time.Millisecond

// Predicate reports whether the awaited condition has been reached. A
// non-nil error aborts the poll immediately.
type Predicate func(ctx context.Context) (done bool, err error)

// Until polls pred at interval until it reports done, returns an error,
// or ctx is cancelled. It always performs at least one check before the
// first sleep, so a condition already satisfied returns immediately.
func Until(ctx context.Context, interval time.Duration, pred Predicate) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		done, err := pred(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Channel drains a progress channel until it closes or ctx is
// cancelled, invoking onEvent for every value received. The HTTP
// surface's run registry uses it to fold each async run's progress
// events into that run's polled history.
func Channel[T any](ctx context.Context, events <-chan T, onEvent func(T)) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if onEvent != nil {
				onEvent(ev)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
