package payload

import (
	"sync"

	"github.com/firasghr/HeyteaDIY/logger"
)

// Watcher keeps one baseline schema per endpoint. It is safe for concurrent
// use by all relay handlers.
type Watcher struct {
	log *logger.Logger

	mu        sync.Mutex
	baselines map[string]Schema
}

// NewWatcher returns a Watcher that reports drift through log. A nil log
// disables reporting; Observe still returns the mismatches.
func NewWatcher(log *logger.Logger) *Watcher {
	return &Watcher{log: log, baselines: make(map[string]Schema)}
}

// Observe compares body with the baseline for endpoint. The first JSON
// object seen for an endpoint becomes its baseline. Bodies that are not
// JSON objects are ignored.
//
// Only successful vendor envelopes (code 0 or absent) should be observed:
// error envelopes have a different shape by nature.
func (w *Watcher) Observe(endpoint string, body []byte) []Mismatch {
	current, err := Extract(body)
	if err != nil {
		return nil
	}

	w.mu.Lock()
	baseline, ok := w.baselines[endpoint]
	if !ok {
		w.baselines[endpoint] = current
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	mismatches := Diff(baseline, current)
	if len(mismatches) > 0 && w.log != nil {
		w.log.Event("schema.drift", logger.Fields{
			"endpoint":   endpoint,
			"mismatches": mismatches,
		})
	}
	return mismatches
}

// Baseline returns a copy of the recorded schema for endpoint, or nil.
func (w *Watcher) Baseline(endpoint string) Schema {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.baselines[endpoint]
	if !ok {
		return nil
	}
	out := make(Schema, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Forget drops the baseline for endpoint so the next response re-learns it.
func (w *Watcher) Forget(endpoint string) {
	w.mu.Lock()
	delete(w.baselines, endpoint)
	w.mu.Unlock()
}
