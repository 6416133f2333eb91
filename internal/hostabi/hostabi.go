// Package hostabi defines the guest's view of the host ABI (spec.md §6) as
// a Go interface, and provides two implementations: a real one compiled
// only into wasip1 guest binaries (wasm.go) that calls the imported host
// functions, and an in-memory fake used by every other build (fake.go) so
// the handler and its tests never need a WASM runtime to exercise the
// decision pipeline. This mirrors the dual
// InProcessSandbox/WasiSandbox split in pkg/runtime/sandbox.Sandbox: one
// interface, a real WASI-backed implementation, and a non-WASI stand-in for
// development and tests.
package hostabi

// Kind selects which side of the transaction a header/body call addresses
// (spec.md §6 get_header_names "kind": 0=request, 1=response).
type Kind uint32

const (
	KindRequest  Kind = 0
	KindResponse Kind = 1
)

// LogLevel mirrors the host's log function's level parameter (spec.md §6).
type LogLevel int32

const (
	LogLevelDebug LogLevel = -1
	LogLevelInfo  LogLevel = 0
	LogLevelWarn  LogLevel = 1
	LogLevelError LogLevel = 2
)

// FeatureResponseBuffering is flag 2 of the enable_features mask (spec.md
// §6: "Request optional capabilities (bit 2 = response buffering)"), using
// the host ABI's 1-indexed flag numbering (flag N = 1<<(N-1)), confirmed by
// `original_source/treblle-wasm-plugin/src/lib.rs`'s
// `host_enable_features(2)` call to enable response buffering.
const FeatureResponseBuffering uint32 = 1 << 1

// Host is the guest's consumer-side view of the host ABI. Every method
// except Log returns an error for "buffer too small" or any other
// host-reported failure; callers are expected to log and fall back to the documented
// "continue" behavior rather than propagate it (spec.md §7).
type Host interface {
	Log(level LogLevel, msg string)
	EnableFeatures(mask uint32) (enabled uint32, err error)
	Config() ([]byte, error)

	URI() (string, error)
	Method() (string, error)
	ProtocolVersion() (string, error)
	SourceAddr() (string, error)

	HeaderNames(kind Kind) ([]string, error)
	HeaderValue(kind Kind, name string) (string, error)

	ReadBody(kind Kind) ([]byte, error)
	WriteBody(kind Kind, body []byte) error

	StatusCode() (uint32, error)
}

// Headers reads every header name then its joined value, assembling the
// map the payload builder expects. A per-name read failure is skipped
// rather than aborting the whole read: a single uncooperative header must
// not cost the guest the rest of the transaction (spec.md §7 failure
// isolation).
func Headers(h Host, kind Kind) map[string]string {
	names, err := h.HeaderNames(kind)
	if err != nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(names))
	for _, name := range names {
		v, err := h.HeaderValue(kind, name)
		if err != nil {
			continue
		}
		out[name] = v
	}
	return out
}
