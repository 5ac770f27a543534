// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vwp-nl/fieldplan-core/pkg/streaming"
	"github.com/vwp-nl/fieldplan-core/pkg/watch"
)

// run tracks one asynchronous Seasonal Planner or Weekly Assignment
// Solver invocation: the goroutine executing it publishes
// streaming.ProgressEvent values, which runRegistry drains into
// history so a late GET /runs/{id} poller sees everything a
// WebSocket client would have seen live.
type run struct {
	mu      sync.Mutex
	stage   streaming.Stage
	history []streaming.ProgressEvent
	result  any
	err     error
	done    bool
}

func (r *run) snapshot() (events []streaming.ProgressEvent, result any, err error, done bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]streaming.ProgressEvent(nil), r.history...), r.result, r.err, r.done
}

// runRegistry tracks in-flight and completed async runs and implements
// streaming.ProgressSource so pkg/streaming's WebSocketServer can
// stream any one of them to a connected client.
type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*run
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: map[string]*run{}}
}

// start registers a new run and launches work in its own goroutine,
// translating the emit callback work is given into the run's
// streaming.ProgressEvent history and, on return, its terminal result.
func (reg *runRegistry) start(stage streaming.Stage, work func(ctx context.Context, emit func(msg string, percent float64)) (any, error)) string {
	id := uuid.NewString()
	r := &run{stage: stage}
	reg.mu.Lock()
	reg.runs[id] = r
	reg.mu.Unlock()

	events := make(chan streaming.ProgressEvent, 8)
	go func() {
		defer close(events)
		result, err := work(context.Background(), func(msg string, percent float64) {
			events <- streaming.ProgressEvent{RunID: id, Stage: stage, Message: msg, Percent: percent, ObservedAt: time.Now()}
		})
		r.mu.Lock()
		r.result, r.err = result, err
		r.mu.Unlock()
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		events <- streaming.ProgressEvent{RunID: id, Stage: stage, Message: "done", Percent: 100, Done: true, Err: errMsg, ObservedAt: time.Now()}
	}()

	// watch.Channel drains the producer goroutine's events into the
	// run's history as they arrive, so both the WebSocket stream and a
	// later poll of the same run see an identical event log.
	go func() {
		_ = watch.Channel(context.Background(), events, func(ev streaming.ProgressEvent) {
			r.mu.Lock()
			r.history = append(r.history, ev)
			if ev.Done {
				r.done = true
			}
			r.mu.Unlock()
		})
	}()

	return id
}

// Watch implements streaming.ProgressSource by replaying history and
// then forwarding new events as they're appended, until the run is
// marked done or ctx is cancelled.
func (reg *runRegistry) Watch(ctx context.Context, runID string) (<-chan streaming.ProgressEvent, error) {
	reg.mu.Lock()
	r, ok := reg.runs[runID]
	reg.mu.Unlock()
	if !ok {
		return nil, errUnknownRun(runID)
	}

	out := make(chan streaming.ProgressEvent, 16)
	go func() {
		defer close(out)
		sent := 0
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			events, _, _, done := r.snapshot()
			for _, ev := range events[sent:] {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			sent = len(events)
			if done {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out, nil
}

type errUnknownRun string

func (e errUnknownRun) Error() string { return "unknown run id: " + string(e) }

// status is the JSON body served by GET /runs/{id}.
type status struct {
	RunID  string                    `json:"run_id"`
	Stage  streaming.Stage           `json:"stage"`
	Done   bool                      `json:"done"`
	Error  string                    `json:"error,omitempty"`
	Events []streaming.ProgressEvent `json:"events"`
	Result any                       `json:"result,omitempty"`
}

func (reg *runRegistry) status(runID string) (status, bool) {
	reg.mu.Lock()
	r, ok := reg.runs[runID]
	reg.mu.Unlock()
	if !ok {
		return status{}, false
	}
	events, result, err, done := r.snapshot()
	st := status{RunID: runID, Stage: r.stage, Done: done, Events: events}
	if done {
		st.Result = result
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st, true
}
