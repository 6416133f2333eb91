// Package config loads the JSON configuration blob the host delivers at
// guest init, applies documented defaults, and validates required fields
// without ever panicking — a malformed or invalid config degrades to a
// fallback that keeps the proxy path alive (spec.md §4.1). The load-once,
// cache-forever shape mirrors pkg/config.Load()'s env-var singleton,
// adapted from environment variables to a host-delivered byte blob.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Mindburn-Labs/treblle-http-wasm/internal/errs"
)

// LogLevel mirrors the host's log levels plus None (spec.md §3, §4.7).
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelNone  LogLevel = "none"
)

// DefaultSensitiveKeysRegex is applied when the host omits sensitiveKeysRegex.
const DefaultSensitiveKeysRegex = `(?i)(password|pwd|secret|password_confirmation|cc|card_number|ccv|ssn|credit_score)`

// DefaultCollectorEndpoints ship with the guest so observation works the
// instant api_key/project_id are supplied, without an operator having to
// look up the collector's infrastructure topology.
var DefaultCollectorEndpoints = []string{
	"https://rocknrolla.treblle.com",
	"https://punisher.treblle.com",
	"https://sicario.treblle.com",
}

// SupportedSchemaVersions bounds the optional configSchemaVersion field a
// host may stamp on the config blob (SPEC_FULL.md §3's semver wiring). The
// guest was built against schema major version 1; anything outside this
// range is treated exactly like a parse failure (fall back to defaults) so
// a host upgrade never has to coordinate a flag-day with this guest build.
const SupportedSchemaVersions = "^1.0.0"

// Config is the process-wide, immutable-after-init configuration.
type Config struct {
	CollectorEndpoints []string
	APIKey             string
	ProjectID          string
	RouteBlacklist     []string
	SensitiveKeysRegex string
	BufferResponse     bool
	LogLevel           LogLevel
	RootCAPath         string
	// OTLPEndpoint is optional and additive: when empty, telemetry export
	// is disabled and every internal/telemetry call is a cheap no-op
	// (SPEC_FULL.md §3 — "strictly additive and never blocks or fails a
	// transaction").
	OTLPEndpoint string

	// Valid is false when the loaded (or fallback) config failed
	// validation. Transmission will never succeed in that state, but the
	// rest of the pipeline still runs — the proxy path is never broken
	// (spec.md §3 Lifecycle).
	Valid bool
}

// rawConfig mirrors the host's JSON surface verbatim (spec.md §6).
type rawConfig struct {
	TreblleAPIURLs      []string    `json:"treblleApiUrls"`
	APIKey              string      `json:"apiKey"`
	ProjectID           string      `json:"projectId"`
	RouteBlacklist      []string    `json:"routeBlacklist"`
	SensitiveKeysRegex  string      `json:"sensitiveKeysRegex"`
	BufferResponse      interface{} `json:"bufferResponse"`
	LogLevel            string      `json:"logLevel"`
	RootCAPath          string      `json:"rootCaPath"`
	ConfigSchemaVersion string      `json:"configSchemaVersion"`
	OTLPEndpoint        string      `json:"otlpEndpoint"`
}

// shapeSchema is a light JSON-Schema gate: it only pins down *types*, not
// required-ness (spec.md's own validation of required-ness — non-empty
// apiKey/projectId — happens afterward and is logged rather than fatal).
// Modeled on pkg/firewall.PolicyFirewall.AllowTool's per-call schema
// compilation; compiled once here since the guest only ever validates one
// document shape.
const shapeSchemaJSON = `{
  "type": "object",
  "properties": {
    "treblleApiUrls": {"type": "array", "items": {"type": "string"}},
    "apiKey": {"type": "string"},
    "projectId": {"type": "string"},
    "routeBlacklist": {"type": "array", "items": {"type": "string"}},
    "sensitiveKeysRegex": {"type": "string"},
    "bufferResponse": {"type": ["boolean", "string"]},
    "logLevel": {"type": "string"},
    "rootCaPath": {"type": "string"},
    "configSchemaVersion": {"type": "string"},
    "otlpEndpoint": {"type": "string"}
  }
}`

var shapeValidator *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	const resourceURL = "https://treblle-http-wasm.local/config.schema.json"
	if err := c.AddResource(resourceURL, strings.NewReader(shapeSchemaJSON)); err != nil {
		panic(fmt.Sprintf("config: invalid embedded schema: %v", err))
	}
	compiled, err := c.Compile(resourceURL)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema failed to compile: %v", err))
	}
	shapeValidator = compiled
}

// Default returns the documented fallback configuration (spec.md §4.1).
func Default() Config {
	return Config{
		CollectorEndpoints: append([]string(nil), DefaultCollectorEndpoints...),
		RouteBlacklist:     nil,
		SensitiveKeysRegex: DefaultSensitiveKeysRegex,
		BufferResponse:     false,
		LogLevel:           LogLevelNone,
	}
}

// Result carries the parsed config plus whatever diagnostic happened along
// the way, so the caller (the handler) can log it through internal/logging
// without config needing to know about the logger.
type Result struct {
	Config Config
	// Diagnostic is non-nil when parsing/validation fell back to defaults
	// or the result failed field validation; always non-nil means "do not
	// crash", never "this value is unusable" — see spec.md §4.1.
	Diagnostic *errs.Error
}

// Parse decodes raw host-delivered JSON into a Config, applying defaults
// for every missing field and validating the result. It never returns an
// error: a malformed blob yields Default() plus a Diagnostic (spec.md P10).
func Parse(raw []byte) Result {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Result{Config: Default(), Diagnostic: errs.Wrap(errs.KindJSON, "config parse failed", err)}
	}
	if err := shapeValidator.Validate(generic); err != nil {
		return Result{Config: Default(), Diagnostic: errs.Wrap(errs.KindJSON, "config failed shape validation", err)}
	}

	var rc rawConfig
	if err := json.Unmarshal(raw, &rc); err != nil {
		return Result{Config: Default(), Diagnostic: errs.Wrap(errs.KindJSON, "config decode failed", err)}
	}

	if diag := checkSchemaVersion(rc.ConfigSchemaVersion); diag != nil {
		return Result{Config: Default(), Diagnostic: diag}
	}

	cfg := Default()
	if len(rc.TreblleAPIURLs) > 0 {
		cfg.CollectorEndpoints = rc.TreblleAPIURLs
	}
	cfg.APIKey = rc.APIKey
	cfg.ProjectID = rc.ProjectID
	cfg.RouteBlacklist = rc.RouteBlacklist
	if rc.SensitiveKeysRegex != "" {
		cfg.SensitiveKeysRegex = rc.SensitiveKeysRegex
	}
	cfg.RootCAPath = rc.RootCAPath
	cfg.OTLPEndpoint = rc.OTLPEndpoint

	bufferResponse, diag := parseBufferResponse(rc.BufferResponse)
	if diag != nil {
		return Result{Config: Default(), Diagnostic: diag}
	}
	cfg.BufferResponse = bufferResponse

	cfg.LogLevel = parseLogLevel(rc.LogLevel)

	cfg.Valid = cfg.APIKey != "" && cfg.ProjectID != ""
	var diagnostic *errs.Error
	if !cfg.Valid {
		diagnostic = errs.New(errs.KindConfig, "apiKey and projectId must be non-empty; transmission disabled for this session")
	}
	return Result{Config: cfg, Diagnostic: diagnostic}
}

func checkSchemaVersion(v string) *errs.Error {
	if v == "" {
		return nil
	}
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return errs.Wrap(errs.KindConfig, "configSchemaVersion is not valid semver", err)
	}
	constraint, err := semver.NewConstraint(SupportedSchemaVersions)
	if err != nil {
		// Our own constraint is a compile-time constant; a failure here
		// is a programmer error, not an operator one, but we still never
		// panic at runtime per spec.md §7.
		return errs.Wrap(errs.KindConfig, "internal schema version constraint is invalid", err)
	}
	if !constraint.Check(parsed) {
		return errs.New(errs.KindConfig, fmt.Sprintf("configSchemaVersion %s is not supported (want %s)", v, SupportedSchemaVersions))
	}
	return nil
}

// parseBufferResponse accepts either a JSON boolean or a case-insensitive
// "true"/"false" string (spec.md §4.1).
func parseBufferResponse(v interface{}) (bool, *errs.Error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(t) {
		case "true":
			return true, nil
		case "false", "":
			return false, nil
		default:
			return false, errs.New(errs.KindConfig, fmt.Sprintf("bufferResponse string %q is not true/false", t))
		}
	default:
		return false, errs.New(errs.KindConfig, "bufferResponse must be a boolean or string")
	}
}

func parseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelNone
	}
}

// maskSecret keeps only the last 4 characters of a secret for logging
// (SPEC_FULL.md §2.1); a secret of 4 characters or fewer is fully masked.
func maskSecret(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// Summary renders a Debug-level-safe one-line description of cfg, with
// api_key masked, for the handler to log exactly once at first
// materialization (SPEC_FULL.md §2.1).
func (c Config) Summary() string {
	return fmt.Sprintf(
		"endpoints=%v project_id=%s api_key=%s blacklist_patterns=%d buffer_response=%t log_level=%s root_ca=%q valid=%t",
		c.CollectorEndpoints, c.ProjectID, maskSecret(c.APIKey), len(c.RouteBlacklist), c.BufferResponse, c.LogLevel, c.RootCAPath, c.Valid,
	)
}
