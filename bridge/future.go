package bridge

import (
	"context"
	"encoding/json"
	"sync"
)

type settlement struct {
	response json.RawMessage
	err      error
}

// Future is the submitter-facing handle for an outstanding request. It
// settles exactly once, with either the remote client's response or an error.
type Future struct {
	once sync.Once
	ch   chan settlement
}

func newFuture() *Future {
	return &Future{ch: make(chan settlement, 1)}
}

// settle completes the future. Calls after the first are no-ops, so a late
// timer or duplicate response can never double-settle.
func (f *Future) settle(response json.RawMessage, err error) {
	f.once.Do(func() {
		f.ch <- settlement{response: response, err: err}
	})
}

// Await blocks until the future settles or ctx is done. The settled value is
// delivered to a single caller.
func (f *Future) Await(ctx context.Context) (json.RawMessage, error) {
	select {
	case s := <-f.ch:
		return s.response, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
