package httpclient

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/treblle-http-wasm/internal/errs"
)

func TestBuildRequestRendersFixedHeaders(t *testing.T) {
	u, err := url.Parse("https://rocknrolla.treblle.com/")
	require.NoError(t, err)

	req := buildRequest(u, "rocknrolla.treblle.com", "secret-key", []byte(`{"a":1}`))
	s := string(req)

	require.Contains(t, s, "POST / HTTP/1.1\r\n")
	require.Contains(t, s, "Host: rocknrolla.treblle.com\r\n")
	require.Contains(t, s, "Content-Type: application/json\r\n")
	require.Contains(t, s, "X-Api-Key: secret-key\r\n")
	require.Contains(t, s, "Content-Length: 7\r\n")
	require.Contains(t, s, "Connection: keep-alive\r\n")
	require.True(t, bytes.HasSuffix(req, []byte(`{"a":1}`)))
}

func TestBuildRequestDefaultsToRootPath(t *testing.T) {
	u, err := url.Parse("https://collector.example.com")
	require.NoError(t, err)

	req := buildRequest(u, "collector.example.com", "k", []byte("{}"))
	require.Contains(t, string(req), "POST / HTTP/1.1\r\n")
}

func TestWriteNonBlockingSucceedsWhenPeerDrains(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := []byte("hello collector")
	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, len(payload))
		_, _ = io.ReadFull(server, buf)
		received <- buf
	}()

	err := writeNonBlocking(client, payload, time.Now().Add(ConnectTimeout))
	require.Nil(t, err)
	require.Equal(t, payload, <-received)
}

func TestWriteNonBlockingFailsWhenDeadlineAlreadyPassed(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	err := writeNonBlocking(client, []byte("x"), time.Now().Add(-time.Second))
	require.NotNil(t, err)
	require.Equal(t, errs.KindTimeout, err.Kind)
}

func TestSendFailsOnInvalidEndpointURL(t *testing.T) {
	c := New("key", []string{"http://[::1"}, nil)
	_, err := c.Send(context.Background(), []byte("{}"))
	require.NotNil(t, err)
	require.Equal(t, errs.KindInvalidURL, err.Kind)
}

func TestSendFailsOnEndpointWithNoHost(t *testing.T) {
	c := New("key", []string{"/just-a-path"}, nil)
	_, err := c.Send(context.Background(), []byte("{}"))
	require.NotNil(t, err)
	require.Equal(t, errs.KindInvalidHostname, err.Kind)
}
