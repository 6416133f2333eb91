package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"time"

	xtls "github.com/Mindburn-Labs/treblle-http-wasm/internal/crypto/tls"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/errs"
)

// ConnectTimeout bounds both the TCP connect/TLS handshake and the overall
// non-blocking write loop (spec.md §4.5, §5: "a single global write
// timeout of 5 seconds (connect)").
const ConnectTimeout = 5 * time.Second

// pollInterval is the busy-wait sleep between write attempts, the WASM
// guest's substitute for an async runtime (spec.md §9 "Blocking semantics
// without a runtime").
const pollInterval = 1 * time.Millisecond

// Client is the process-wide HTTPS client singleton (spec.md §9): the round
// robin selector and TLS config are immutable after construction; the pool
// is the only mutable state, and it is internally synchronized.
type Client struct {
	apiKey   string
	rr       *RoundRobin
	pool     *pool
	rootCAs  *x509.CertPool
	dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)
}

// New builds a Client that POSTs to endpoints in round-robin order, trusting
// rootCAs for the TLS handshake.
func New(apiKey string, endpoints []string, rootCAs *x509.CertPool) *Client {
	return &Client{
		apiKey:  apiKey,
		rr:      NewRoundRobin(endpoints),
		pool:    newPool(),
		rootCAs: rootCAs,
		dialFunc: func(ctx context.Context, network, addr string) (net.Conn, error) {
			d := net.Dialer{}
			return d.DialContext(ctx, network, addr)
		},
	}
}

// PoolSize exposes the live pool size, for diagnostics and tests.
func (c *Client) PoolSize() int { return c.pool.Size() }

// Send POSTs payload to the next endpoint in rotation, per spec.md §4.5.
// The core never reads or validates the collector's response — the
// transaction to the collector is fire-and-best-effort; a successful write
// is all Send reports (spec.md "Response handling").
func (c *Client) Send(ctx context.Context, payload []byte) (endpoint string, sendErr *errs.Error) {
	endpoint = c.rr.Next()
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint, errs.Wrap(errs.KindInvalidURL, fmt.Sprintf("invalid collector endpoint %q", endpoint), err)
	}
	host := u.Hostname()
	if host == "" {
		return endpoint, errs.New(errs.KindInvalidHostname, fmt.Sprintf("collector endpoint %q has no host", endpoint))
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}
	key := net.JoinHostPort(host, port)

	deadline := time.Now().Add(ConnectTimeout)

	conn := c.pool.acquire(key)
	if conn == nil {
		conn, err2 := c.connect(ctx, key, host, deadline)
		if err2 != nil {
			return endpoint, err2
		}
		return endpoint, c.sendOn(key, conn, u, host, payload, deadline)
	}
	return endpoint, c.sendOn(key, conn, u, host, payload, deadline)
}

func (c *Client) connect(ctx context.Context, key, sniName string, deadline time.Time) (*tls.Conn, *errs.Error) {
	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	raw, err := c.dialFunc(dialCtx, "tcp", key)
	if err != nil {
		if dialCtx.Err() != nil {
			return nil, errs.Wrap(errs.KindTimeout, "tcp connect timed out", err)
		}
		return nil, errs.Wrap(errs.KindTCP, "tcp connect failed", err)
	}

	tlsConfig := xtls.ClientConfig(sniName)
	tlsConfig.RootCAs = c.rootCAs

	tlsConn := tls.Client(raw, tlsConfig)
	if err := tlsConn.SetDeadline(deadline); err != nil {
		_ = raw.Close()
		return nil, errs.Wrap(errs.KindTLS, "failed to set handshake deadline", err)
	}
	if err := tlsConn.HandshakeContext(dialCtx); err != nil {
		_ = tlsConn.Close()
		if dialCtx.Err() != nil {
			return nil, errs.Wrap(errs.KindTimeout, "tls handshake timed out", err)
		}
		return nil, errs.Wrap(errs.KindTLS, "tls handshake failed", err)
	}
	// Clear the deadline; the write loop below manages its own budget.
	if err := tlsConn.SetDeadline(time.Time{}); err != nil {
		_ = tlsConn.Close()
		return nil, errs.Wrap(errs.KindTLS, "failed to clear handshake deadline", err)
	}
	return tlsConn, nil
}

func (c *Client) sendOn(key string, conn *tls.Conn, u *url.URL, host string, payload []byte, deadline time.Time) *errs.Error {
	req := buildRequest(u, host, c.apiKey, payload)

	if err := writeNonBlocking(conn, req, deadline); err != nil {
		c.pool.drop(conn)
		return err
	}

	c.pool.release(key, conn)
	return nil
}

// buildRequest renders the fixed HTTP/1.1 POST the collector expects
// (spec.md §4.5 "Send").
func buildRequest(u *url.URL, host, apiKey string, payload []byte) []byte {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "POST %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&b, "Host: %s\r\n", host)
	b.WriteString("Content-Type: application/json\r\n")
	fmt.Fprintf(&b, "X-Api-Key: %s\r\n", apiKey)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(payload))
	b.WriteString("Connection: keep-alive\r\n")
	b.WriteString("\r\n")
	b.Write(payload)
	return b.Bytes()
}

// writeNonBlocking writes the full request in a tight poll loop: on a
// partial write it advances the offset; on a write timeout it sleeps
// pollInterval and retries, unless deadline has passed, in which case it
// fails with Timeout; any other I/O error fails with Io (spec.md §4.5
// "Send").
func writeNonBlocking(conn net.Conn, req []byte, deadline time.Time) *errs.Error {
	offset := 0
	for offset < len(req) {
		if time.Now().After(deadline) {
			return errs.New(errs.KindTimeout, "write to collector timed out")
		}

		if err := conn.SetWriteDeadline(time.Now().Add(pollInterval)); err != nil {
			return errs.Wrap(errs.KindIO, "failed to set write deadline", err)
		}

		n, err := conn.Write(req[offset:])
		offset += n
		if err == nil {
			continue
		}

		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			time.Sleep(pollInterval)
			continue
		}
		return errs.Wrap(errs.KindIO, "write to collector failed", err)
	}
	return nil
}
