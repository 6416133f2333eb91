// Package errs defines the closed set of error kinds the guest can raise
// internally. Every kind carries a human-readable detail string; nothing in
// this package ever panics. See DESIGN.md for the grounding rationale
// (modeled on pkg/kernel/errorir.ErrorIR's code+detail shape, simplified
// down to the guest's single consumer: its own logger).
package errs

import "fmt"

// Kind enumerates the error classes surfaced by the guest's internal
// operations (spec.md §7).
type Kind string

const (
	KindIO              Kind = "IO"
	KindHTTP            Kind = "HTTP"
	KindJSON            Kind = "JSON"
	KindRegex           Kind = "REGEX"
	KindTLS             Kind = "TLS"
	KindCertificate     Kind = "CERTIFICATE"
	KindInvalidURL      Kind = "INVALID_URL"
	KindInvalidHostname Kind = "INVALID_HOSTNAME"
	KindTCP             Kind = "TCP"
	KindTimeout         Kind = "TIMEOUT"
	KindConfig          Kind = "CONFIG"
	KindHostFunction    Kind = "HOST_FUNCTION"
	KindLock            Kind = "LOCK"
)

// Error is the guest's uniform error type. It is never propagated to the
// host; every entry point catches it, logs it, and proceeds with the
// documented fallback behavior.
type Error struct {
	Kind   Kind
	Detail string
	cause  error
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is supports errors.Is(err, errs.New(errs.KindTimeout, ""))-style
// comparisons: it matches any other *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
