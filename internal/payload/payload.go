// Package payload assembles TransactionRecord values from host-provided
// fields: request/response normalization, language/server metadata
// attachment, and redaction, ahead of serialization and transmission
// (spec.md §4.4, C5).
package payload

import (
	"encoding/json"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Mindburn-Labs/treblle-http-wasm/internal/config"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/jsonval"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/redact"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/schema"
)

// languageVersion reports the toolchain that built this guest binary,
// generalizing the original's hardcoded "rust" language block (SPEC_FULL.md
// §4) to whatever Go actually produced the running binary.
func languageVersion() string { return runtime.Version() }

// Builder produces TransactionRecord values for one process-wide Config. It
// is stateless beyond the Config and Redactor it closes over; every Build*
// call returns a fresh value.
type Builder struct {
	cfg      config.Config
	redactor *redact.Redactor
}

// NewBuilder constructs a Builder bound to cfg's identity and redaction
// pattern.
func NewBuilder(cfg config.Config, redactor *redact.Redactor) *Builder {
	return &Builder{cfg: cfg, redactor: redactor}
}

// Base returns a TransactionRecord populated with the fields that are fixed
// for the lifetime of the guest instance: identity, server, and language
// metadata. Callers attach Request/Response/Errors before serializing.
func (b *Builder) Base(protocol string) schema.TransactionRecord {
	return schema.TransactionRecord{
		APIKey:    b.cfg.APIKey,
		ProjectID: b.cfg.ProjectID,
		SDK:       schema.SDKName,
		Version:   schema.SDKVersion,
		Server:    serverInfo(protocol),
		Language:  languageInfo(),
	}
}

// BuildRequest assembles the request-phase record: IP selection, header and
// body redaction, and timestamping (spec.md §4.4, §3).
func (b *Builder) BuildRequest(method, uri string, headers map[string]string, rawBody []byte, now time.Time) *schema.RequestInfo {
	return &schema.RequestInfo{
		Timestamp: now.UTC().Format(time.RFC3339),
		IP:        SelectIP(headers),
		URL:       uri,
		UserAgent: headerValue(headers, "User-Agent"),
		Method:    method,
		Headers:   b.redactor.Headers(headers),
		Body:      b.redactBody(rawBody),
	}
}

// BuildResponse assembles the response-phase record. loadTime is the
// elapsed duration since the timer the caller started at the appropriate
// phase entry (spec.md §4.4: request-phase timer, or response-phase entry
// when no request-phase timer ran).
func (b *Builder) BuildResponse(code int, headers map[string]string, rawBody []byte, loadTime time.Duration) *schema.ResponseInfo {
	return &schema.ResponseInfo{
		Code:     schema.StringifiedInt(code),
		Size:     schema.StringifiedInt(len(rawBody)),
		LoadTime: loadTime.Seconds(),
		Headers:  b.redactor.Headers(headers),
		Body:     b.redactBody(rawBody),
	}
}

// StatusError builds the error entry appended on the response path when the
// host reports an error or the status indicates failure (spec.md §4.8 step
// 2, P7).
func StatusError(code int) schema.ErrorEntry {
	return schema.ErrorEntry{
		Source:    "response",
		ErrorType: "HTTP Error",
		Message:   "HTTP status code: " + strconv.Itoa(code),
		File:      "",
		Line:      0,
	}
}

// IsJSONContentType reports whether contentType names the JSON media type,
// case-insensitively and tolerant of parameters (e.g. "; charset=utf-8")
// (spec.md §4.8 step 2, P3).
func IsJSONContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

// SelectIP implements the host-header IP selection order: X-Forwarded-For's
// first comma-separated element, trimmed; else X-Real-IP (also
// comma-split and trimmed, matching the reference implementation); else the
// literal "Unknown" (spec.md §4.4, P8).
func SelectIP(headers map[string]string) string {
	if v, ok := lookupHeader(headers, "X-Forwarded-For"); ok {
		return firstCommaPart(v)
	}
	if v, ok := lookupHeader(headers, "X-Real-IP"); ok {
		return firstCommaPart(v)
	}
	return "Unknown"
}

func firstCommaPart(v string) string {
	parts := strings.SplitN(v, ",", 2)
	return strings.TrimSpace(parts[0])
}

func headerValue(headers map[string]string, name string) string {
	v, _ := lookupHeader(headers, name)
	return v
}

// lookupHeader finds name in headers case-insensitively, since the host
// preserves the proxy's original header casing (spec.md §3 invariant) but
// header names are not case-sensitive per HTTP semantics.
func lookupHeader(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// redactBody parses rawBody as JSON, applies key-based redaction, and
// re-serializes it. Bytes that do not parse as JSON yield a JSON null body,
// per spec.md §3's invariant.
func (b *Builder) redactBody(rawBody []byte) json.RawMessage {
	v, ok := jsonval.Parse(rawBody)
	if !ok {
		return json.RawMessage("null")
	}
	redacted := b.redactor.Value(v)
	out, err := json.Marshal(redacted)
	if err != nil {
		return json.RawMessage("null")
	}
	return out
}

// serverInfo describes the proxy instance the guest runs inside. IP
// detection and OS release detection are intentionally "Unknown" here,
// matching the reference implementation: neither the WASM guest ABI (§6) nor
// Go's runtime package exposes either without host cooperation this spec
// does not define.
func serverInfo(protocol string) schema.ServerInfo {
	return schema.ServerInfo{
		IP:       "Unknown",
		Timezone: time.Now().Format("MST"),
		Protocol: protocol,
		OS: schema.OSInfo{
			Name:         runtime.GOOS,
			Release:      "Unknown",
			Architecture: runtime.GOARCH,
		},
	}
}

// languageInfo identifies the guest's own runtime to the collector.
func languageInfo() schema.LanguageInfo {
	return schema.LanguageInfo{
		Name:    "go",
		Version: languageVersion(),
	}
}
