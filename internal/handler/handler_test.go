package handler

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/treblle-http-wasm/internal/hostabi"
)

func validConfigJSON() []byte {
	cfg := map[string]any{
		"apiKey":    "test-key",
		"projectId": "test-project",
		// Point at an address nothing listens on so Send fails fast with a
		// connection error instead of hanging on a real network call.
		"treblleApiUrls": []string{"https://127.0.0.1:1"},
	}
	b, _ := json.Marshal(cfg)
	return b
}

func TestHandleRequestAlwaysReturnsOne(t *testing.T) {
	host := &hostabi.FakeHost{
		ConfigJSON:    validConfigJSON(),
		RequestURI:    "/users",
		RequestMethod: "POST",
		RequestHeaders: map[string]string{
			"Content-Type": "application/json",
		},
		RequestBody: []byte(`{"email":"a@b"}`),
	}
	h := New(host)
	require.EqualValues(t, 1, h.HandleRequest())
}

func TestHandleRequestSkipsBlacklistedURI(t *testing.T) {
	cfg := map[string]any{
		"apiKey":         "k",
		"projectId":      "p",
		"routeBlacklist": []string{"^/internal/.*$"},
	}
	b, _ := json.Marshal(cfg)

	host := &hostabi.FakeHost{
		ConfigJSON:    b,
		RequestURI:    "/internal/metrics",
		RequestMethod: "GET",
	}
	h := New(host)
	require.EqualValues(t, 1, h.HandleRequest())
}

func TestHandleRequestSkipsNonJSONContentType(t *testing.T) {
	host := &hostabi.FakeHost{
		ConfigJSON:     validConfigJSON(),
		RequestURI:     "/x",
		RequestHeaders: map[string]string{"Content-Type": "text/plain"},
	}
	h := New(host)
	require.EqualValues(t, 1, h.HandleRequest())
}

func TestHandleRequestReturnsOneEvenWhenURIReadFails(t *testing.T) {
	host := &hostabi.FakeHost{
		ConfigJSON: validConfigJSON(),
		Err:        map[string]error{"URI": assertErr},
	}
	h := New(host)
	require.EqualValues(t, 1, h.HandleRequest())
}

func TestEnsureInitLogsMaskedConfigSummaryAtDebug(t *testing.T) {
	cfg := map[string]any{
		"apiKey":    "supersecretvalue",
		"projectId": "p",
		"logLevel":  "debug",
	}
	b, _ := json.Marshal(cfg)
	host := &hostabi.FakeHost{ConfigJSON: b}
	h := New(host)
	h.ensureInit()

	found := false
	for _, entry := range host.Logs {
		if strings.Contains(entry.Msg, "config:") {
			found = true
			require.Contains(t, entry.Msg, "****")
			require.NotContains(t, entry.Msg, "supersecretvalue")
		}
	}
	require.True(t, found, "expected a masked config summary log line")
}

func TestHandleResponseNoOpWhenBufferResponseDisabled(t *testing.T) {
	host := &hostabi.FakeHost{ConfigJSON: validConfigJSON()}
	h := New(host)
	h.HandleResponse(0, 0)
	require.Empty(t, host.Logs)
}

func TestHandleResponseNegotiatesFeatureWhenBufferingEnabled(t *testing.T) {
	cfg := map[string]any{
		"apiKey":         "k",
		"projectId":      "p",
		"bufferResponse": true,
	}
	b, _ := json.Marshal(cfg)
	host := &hostabi.FakeHost{
		ConfigJSON:      b,
		ResponseHeaders: map[string]string{},
		ResponseBody:    []byte(`{}`),
		Status:          200,
	}
	h := New(host)
	h.HandleResponse(0, 0)
	require.Equal(t, hostabi.FeatureResponseBuffering, host.EnabledFeatures)
}

func TestHandleResponseRestoresBodyOnServerError(t *testing.T) {
	cfg := map[string]any{
		"apiKey":         "k",
		"projectId":      "p",
		"bufferResponse": true,
		"treblleApiUrls": []string{"https://127.0.0.1:1"},
	}
	b, _ := json.Marshal(cfg)
	host := &hostabi.FakeHost{
		ConfigJSON:      b,
		ResponseHeaders: map[string]string{},
		ResponseBody:    []byte(`{}`),
		Status:          500,
	}
	h := New(host)
	h.HandleResponse(0, 0)
	require.Equal(t, []byte(`{}`), host.WrittenBody(hostabi.KindResponse))
}

var assertErr = &fakeErr{}

type fakeErr struct{}

func (*fakeErr) Error() string { return "boom" }
