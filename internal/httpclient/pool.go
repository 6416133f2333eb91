// Package httpclient implements the WASI-friendly HTTPS client of spec.md
// §4.5: a keep-alive connection pool keyed by (host, port), round-robin
// endpoint selection, and a bounded non-blocking write loop. The pool's
// mutex-guarded-map shape is modeled on pkg/runtime/sandbox's WasiSandbox
// (one mutable resource behind a lock, everything else constructed once)
// and pkg/util/resiliency.CircuitBreaker's mutex-protected counters.
package httpclient

import (
	"crypto/tls"
	"sync"
	"time"
)

// IdleTimeout is how long a pooled connection may sit unused before it is
// dropped on acquisition (spec.md §3 ConnectionPoolEntry, §4.5 step 1).
const IdleTimeout = 60 * time.Second

// MaxPoolSize bounds the number of connections held across all keys
// (spec.md §3, §5 Resource caps: "Pool size ≤ 50").
const MaxPoolSize = 50

// entry is a live TLS stream plus the time it was last returned to the
// pool (spec.md §3: "last_used is refreshed on return-to-pool, not on
// acquisition").
type entry struct {
	conn     *tls.Conn
	lastUsed time.Time
}

// pool is the only mutable shared state in the HTTPS client (spec.md §9).
type pool struct {
	mu      sync.Mutex
	byKey   map[string][]*entry
	size    int
}

func newPool() *pool {
	return &pool{byKey: make(map[string][]*entry)}
}

// acquire returns a fresh pooled connection for key, if one exists and has
// not exceeded IdleTimeout. Expired entries are dropped and closed as a
// side effect of the scan (spec.md §4.5 step 1).
func (p *pool) acquire(key string) *tls.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.byKey[key]
	now := time.Now()
	var kept []*entry
	var found *tls.Conn
	for _, e := range entries {
		if found == nil && now.Sub(e.lastUsed) <= IdleTimeout {
			found = e.conn
			p.size--
			continue
		}
		if now.Sub(e.lastUsed) > IdleTimeout {
			_ = e.conn.Close()
			p.size--
			continue
		}
		kept = append(kept, e)
	}
	p.byKey[key] = kept
	return found
}

// release returns conn to the pool under key, refreshing its last-used
// timestamp. If the pool is at capacity the connection is dropped instead
// (spec.md §4.5 "Send": "the remote will reclaim it on keep-alive idle
// timeout").
func (p *pool) release(key string, conn *tls.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.size >= MaxPoolSize {
		_ = conn.Close()
		return
	}
	p.byKey[key] = append(p.byKey[key], &entry{conn: conn, lastUsed: time.Now()})
	p.size++
}

// drop closes and discards conn without returning it to the pool, used
// when a send fails on a pooled connection that turned out to be dead.
func (p *pool) drop(conn *tls.Conn) {
	_ = conn.Close()
}

// Size reports the current number of pooled connections, for tests and
// diagnostics.
func (p *pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}
