package payload

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/treblle-http-wasm/internal/config"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/redact"
)

func testBuilder(t *testing.T) *Builder {
	t.Helper()
	cfg := config.Config{APIKey: "key", ProjectID: "proj"}
	re := regexp.MustCompile(`(?i)password`)
	return NewBuilder(cfg, redact.New(re))
}

func TestSelectIPPrefersXForwardedFor(t *testing.T) {
	ip := SelectIP(map[string]string{
		"X-Forwarded-For": "10.0.0.1, 10.0.0.2",
		"X-Real-IP":       "192.168.1.1",
	})
	require.Equal(t, "10.0.0.1", ip)
}

func TestSelectIPFallsBackToXRealIP(t *testing.T) {
	ip := SelectIP(map[string]string{"X-Real-IP": "192.168.1.1"})
	require.Equal(t, "192.168.1.1", ip)
}

func TestSelectIPFallsBackToUnknown(t *testing.T) {
	require.Equal(t, "Unknown", SelectIP(map[string]string{}))
}

func TestIsJSONContentTypeIsCaseInsensitiveAndToleratesParameters(t *testing.T) {
	require.True(t, IsJSONContentType("Application/JSON; charset=utf-8"))
	require.False(t, IsJSONContentType("text/plain"))
}

func TestBuildRequestRedactsBodyAndHeaders(t *testing.T) {
	b := testBuilder(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	req := b.BuildRequest(
		"POST",
		"/users",
		map[string]string{"Content-Type": "application/json", "X-Forwarded-For": "10.0.0.1"},
		[]byte(`{"email":"a@b","password":"p"}`),
		now,
	)

	require.Equal(t, "10.0.0.1", req.IP)
	require.Equal(t, "2026-01-02T03:04:05Z", req.Timestamp)

	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &body))
	require.Equal(t, "a@b", body["email"])
	require.Equal(t, "*****", body["password"])
}

func TestBuildRequestYieldsNullBodyForNonJSON(t *testing.T) {
	b := testBuilder(t)
	req := b.BuildRequest("GET", "/x", nil, []byte("not json"), time.Now())
	require.Equal(t, json.RawMessage("null"), req.Body)
}

func TestBuildResponseSerializesCodeAndSizeAsStrings(t *testing.T) {
	b := testBuilder(t)
	resp := b.BuildResponse(200, nil, []byte(`{"ok":true}`), 250*time.Millisecond)

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	require.Contains(t, string(out), `"code":"200"`)
	require.Contains(t, string(out), `"size":"11"`)
	require.InDelta(t, 0.25, resp.LoadTime, 0.001)
}

func TestStatusErrorFormatsMessage(t *testing.T) {
	e := StatusError(500)
	require.Equal(t, "response", e.Source)
	require.Equal(t, "HTTP Error", e.ErrorType)
	require.Equal(t, "HTTP status code: 500", e.Message)
}

func TestBaseFillsIdentityServerAndLanguage(t *testing.T) {
	b := testBuilder(t)
	rec := b.Base("HTTP/1.1")

	require.Equal(t, "key", rec.APIKey)
	require.Equal(t, "proj", rec.ProjectID)
	require.Equal(t, "HTTP/1.1", rec.Server.Protocol)
	require.Equal(t, "go", rec.Language.Name)
	require.NotEmpty(t, rec.Server.OS.Name)
}
