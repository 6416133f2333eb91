//go:build wasip1

package hostabi

import (
	"fmt"
	"strings"
	"unsafe"
)

// Buffer sizes for host calls that copy into guest-owned memory (spec.md
// §5 "Resource caps": "per-read buffer 2-4KB per host call" for small
// fields; bodies get a larger, separately sized buffer since they are
// "bounded, buffered payloads" (spec.md §1) rather than fixed-width fields.
const (
	smallBufCap  = 4 * 1024
	headerBufCap = 8 * 1024
	bodyBufCap   = 256 * 1024
)

//go:wasmimport http_handler log
func hostLog(level int32, ptr unsafe.Pointer, length int32)

//go:wasmimport http_handler enable_features
func hostEnableFeatures(mask uint32) uint32

//go:wasmimport http_handler get_config
func hostGetConfig(ptr unsafe.Pointer, cap int32) int32

//go:wasmimport http_handler get_uri
func hostGetURI(ptr unsafe.Pointer, cap int32) int32

//go:wasmimport http_handler get_method
func hostGetMethod(ptr unsafe.Pointer, cap int32) int32

//go:wasmimport http_handler get_protocol_version
func hostGetProtocolVersion(ptr unsafe.Pointer, cap int32) int32

//go:wasmimport http_handler get_source_addr
func hostGetSourceAddr(ptr unsafe.Pointer, cap int32) int32

//go:wasmimport http_handler get_header_names
func hostGetHeaderNames(kind uint32, ptr unsafe.Pointer, cap int32) int64

//go:wasmimport http_handler get_header_values
func hostGetHeaderValues(kind uint32, namePtr unsafe.Pointer, nameLen int32, ptr unsafe.Pointer, cap int32) int64

//go:wasmimport http_handler read_body
func hostReadBody(kind uint32, ptr unsafe.Pointer, cap int32) int64

//go:wasmimport http_handler write_body
func hostWriteBody(kind uint32, ptr unsafe.Pointer, length int32)

//go:wasmimport http_handler get_status_code
func hostGetStatusCode() uint32

// WasmHost implements Host by calling the imported functions above. It
// holds no state beyond what the host ABI itself is stateful about; every
// call allocates its own scratch buffer so it is safe to use from a single
// synchronous entry point without locking (spec.md §5: the guest runs one
// invocation at a time per instance).
type WasmHost struct{}

// New returns the real, wasip1-backed Host implementation.
func New() *WasmHost { return &WasmHost{} }

func (*WasmHost) Log(level LogLevel, msg string) {
	b := []byte(msg)
	if len(b) == 0 {
		hostLog(int32(level), nil, 0)
		return
	}
	hostLog(int32(level), unsafe.Pointer(&b[0]), int32(len(b)))
}

func (*WasmHost) EnableFeatures(mask uint32) (uint32, error) {
	return hostEnableFeatures(mask), nil
}

func (*WasmHost) Config() ([]byte, error) {
	buf := make([]byte, bodyBufCap)
	n := hostGetConfig(unsafe.Pointer(&buf[0]), int32(len(buf)))
	if n < 0 {
		return nil, fmt.Errorf("hostabi: get_config failed (code %d)", n)
	}
	return stripNUL(buf[:n]), nil
}

func (w *WasmHost) URI() (string, error) {
	return w.readSmallString(hostGetURI, "get_uri")
}

func (w *WasmHost) Method() (string, error) {
	return w.readSmallString(hostGetMethod, "get_method")
}

func (w *WasmHost) ProtocolVersion() (string, error) {
	return w.readSmallString(hostGetProtocolVersion, "get_protocol_version")
}

func (w *WasmHost) SourceAddr() (string, error) {
	return w.readSmallString(hostGetSourceAddr, "get_source_addr")
}

func (w *WasmHost) readSmallString(fn func(ptr unsafe.Pointer, cap int32) int32, name string) (string, error) {
	buf := make([]byte, smallBufCap)
	n := fn(unsafe.Pointer(&buf[0]), int32(len(buf)))
	if n < 0 {
		return "", fmt.Errorf("hostabi: %s failed (code %d)", name, n)
	}
	return string(stripNUL(buf[:n])), nil
}

func (w *WasmHost) HeaderNames(kind Kind) ([]string, error) {
	buf := make([]byte, headerBufCap)
	n := hostGetHeaderNames(uint32(kind), unsafe.Pointer(&buf[0]), int32(len(buf)))
	if n < 0 {
		return nil, fmt.Errorf("hostabi: get_header_names failed (code %d)", n)
	}
	joined := string(stripNUL(buf[:n]))
	if joined == "" {
		return nil, nil
	}
	return strings.Split(joined, ","), nil
}

func (w *WasmHost) HeaderValue(kind Kind, name string) (string, error) {
	nameBytes := []byte(name)
	buf := make([]byte, headerBufCap)
	var namePtr unsafe.Pointer
	if len(nameBytes) > 0 {
		namePtr = unsafe.Pointer(&nameBytes[0])
	}
	n := hostGetHeaderValues(uint32(kind), namePtr, int32(len(nameBytes)), unsafe.Pointer(&buf[0]), int32(len(buf)))
	if n < 0 {
		return "", fmt.Errorf("hostabi: get_header_values(%s) failed (code %d)", name, n)
	}
	return string(stripNUL(buf[:n])), nil
}

func (w *WasmHost) ReadBody(kind Kind) ([]byte, error) {
	buf := make([]byte, bodyBufCap)
	n := hostReadBody(uint32(kind), unsafe.Pointer(&buf[0]), int32(len(buf)))
	if n < 0 {
		return nil, fmt.Errorf("hostabi: read_body failed (code %d)", n)
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, nil
}

// WriteBody restores a body the guest consumed while reading it, so a
// host whose read_body is destructive still delivers the body downstream
// (spec.md §9 Open Questions (a): "the guest must call write_body
// defensively when both are available").
func (w *WasmHost) WriteBody(kind Kind, body []byte) error {
	if len(body) == 0 {
		hostWriteBody(uint32(kind), nil, 0)
		return nil
	}
	hostWriteBody(uint32(kind), unsafe.Pointer(&body[0]), int32(len(body)))
	return nil
}

func (w *WasmHost) StatusCode() (uint32, error) {
	return hostGetStatusCode(), nil
}

// stripNUL cuts b at its first NUL byte, dropping any sentinel NUL padding
// the host wrote (spec.md §6: "All string fields are UTF-8 with sentinel NULs stripped by
// the guest").
func stripNUL(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}
