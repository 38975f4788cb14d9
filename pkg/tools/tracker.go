package tools

import (
	"sync"
	"time"
)

// Tracker is a per-turn table of in-flight and finished tool calls, keyed by
// call identity. The orchestrator owns one per turn and passes it into the
// router, so concurrent turns never share call state. A result transitions
// to terminal at most once; repeat terminal transitions are no-ops.
type Tracker struct {
	mu    sync.Mutex
	calls map[string]*CallResult
}

func NewTracker() *Tracker {
	return &Tracker{calls: make(map[string]*CallResult)}
}

// Begin registers an executing result under its identity key. If a result
// with the same key is already tracked, that one is returned instead:
// identical concurrent calls are the same logical call.
func (t *Tracker) Begin(result *CallResult) *CallResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := result.Key()
	if existing, ok := t.calls[key]; ok {
		return existing
	}
	t.calls[key] = result
	return result
}

// Complete marks the call terminal with a successful result. Returns false
// if the call is unknown or already terminal.
func (t *Tracker) Complete(key string, result any, duration time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.calls[key]
	if !ok || r.Terminal() {
		return false
	}
	r.Status = StatusCompleted
	r.Result = result
	r.Duration = duration
	return true
}

// Fail marks the call terminal with an error. Returns false if the call is
// unknown or already terminal.
func (t *Tracker) Fail(key string, errMsg string, duration time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.calls[key]
	if !ok || r.Terminal() {
		return false
	}
	r.Status = StatusFailed
	r.Error = errMsg
	r.Duration = duration
	return true
}

// Get returns the tracked result for an identity key.
func (t *Tracker) Get(key string) (*CallResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.calls[key]
	return r, ok
}

// Len returns the number of tracked calls.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
