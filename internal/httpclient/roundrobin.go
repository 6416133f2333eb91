package httpclient

import "sync/atomic"

// RoundRobin selects collector endpoints in insertion order, advancing a
// monotonic counter on every call (spec.md §4.5 "Endpoint selection"). The
// counter's arithmetic wrap guarantees deterministic rotation in a
// single-threaded guest instance; there is deliberately no cross-instance
// coordination (spec.md §4.5 "Round-robin correctness").
type RoundRobin struct {
	endpoints []string
	counter   uint64
}

// NewRoundRobin stores endpoints in the given order. Panics if endpoints is
// empty: a collector with zero configured endpoints is a construction-time
// configuration error, not a per-request one.
func NewRoundRobin(endpoints []string) *RoundRobin {
	if len(endpoints) == 0 {
		panic("httpclient: round-robin requires at least one endpoint")
	}
	cp := append([]string(nil), endpoints...)
	return &RoundRobin{endpoints: cp}
}

// Next returns the next endpoint in rotation.
func (r *RoundRobin) Next() string {
	n := atomic.AddUint64(&r.counter, 1) - 1
	return r.endpoints[n%uint64(len(r.endpoints))]
}
