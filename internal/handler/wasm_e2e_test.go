package handler

// This file hosts an end-to-end test that runs the real compiled guest
// binary (cmd/guest, built with GOOS=wasip1 GOARCH=wasm) inside wazero,
// wiring the http_handler host module exactly as a production host would
// (spec.md §6). It mirrors the fixture-driven shape of
// core/pkg/runtime/sandbox/wasi_sandbox_test.go, but since this task never
// invokes the Go toolchain there is no way to produce the fixture here: the
// test skips itself when the precompiled artifact is absent from disk.
//
// To populate the fixture and actually exercise this test:
//
//	GOOS=wasip1 GOARCH=wasm go build -o internal/handler/testdata/guest.wasm ./cmd/guest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/Mindburn-Labs/treblle-http-wasm/internal/hostabi"
)

const guestFixturePath = "testdata/guest.wasm"

// fakeABI is a wazero-side implementation of the http_handler host module
// (spec.md §6). It plays the same role as hostabi.FakeHost, but speaks raw
// wasm numeric/pointer ABI against the guest's linear memory instead of Go
// method calls, since here the guest is a real compiled module rather than
// code linked into the test binary.
type fakeABI struct {
	mu sync.Mutex

	configJSON      []byte
	uri             string
	method          string
	protocolVersion string
	sourceAddr      string
	requestHeaders  map[string]string
	responseHeaders map[string]string
	requestBody     []byte
	responseBody    []byte
	statusCode      uint32

	enabledFeatures uint32
	logs            []string
	writtenRequest  []byte
	writtenResponse []byte
}

func (f *fakeABI) headers(kind uint32) map[string]string {
	if kind == 0 {
		return f.requestHeaders
	}
	return f.responseHeaders
}

func (f *fakeABI) body(kind uint32) []byte {
	if kind == 0 {
		return f.requestBody
	}
	return f.responseBody
}

func writeString(mem api.Memory, ptr, cap uint32, s string) int32 {
	b := []byte(s)
	if len(b) > int(cap) {
		return -1
	}
	if len(b) == 0 {
		return 0
	}
	if !mem.Write(ptr, b) {
		return -1
	}
	return int32(len(b))
}

func readString(mem api.Memory, ptr, length uint32) string {
	if length == 0 {
		return ""
	}
	b, ok := mem.Read(ptr, length)
	if !ok {
		return ""
	}
	return string(b)
}

// register wires f's methods into a wazero host module named "http_handler",
// matching the numeric signatures internal/hostabi's go:wasmimport
// declarations (wasm.go) compile down to (unsafe.Pointer lowers to an i32 linear-memory offset).
func (f *fakeABI) register(ctx context.Context, rt wazero.Runtime) error {
	b := rt.NewHostModuleBuilder("http_handler")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, m api.Module, level int32, ptr, length int32) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.logs = append(f.logs, readString(m.Memory(), uint32(ptr), uint32(length)))
	}).Export("log")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mask uint32) uint32 {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.enabledFeatures = mask
		return mask
	}).Export("enable_features")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, m api.Module, ptr, cap int32) int32 {
		return writeString(m.Memory(), uint32(ptr), uint32(cap), string(f.configJSON))
	}).Export("get_config")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, m api.Module, ptr, cap int32) int32 {
		return writeString(m.Memory(), uint32(ptr), uint32(cap), f.uri)
	}).Export("get_uri")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, m api.Module, ptr, cap int32) int32 {
		return writeString(m.Memory(), uint32(ptr), uint32(cap), f.method)
	}).Export("get_method")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, m api.Module, ptr, cap int32) int32 {
		return writeString(m.Memory(), uint32(ptr), uint32(cap), f.protocolVersion)
	}).Export("get_protocol_version")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, m api.Module, ptr, cap int32) int32 {
		return writeString(m.Memory(), uint32(ptr), uint32(cap), f.sourceAddr)
	}).Export("get_source_addr")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, m api.Module, kind uint32, ptr, cap int32) int64 {
		names := make([]string, 0, len(f.headers(kind)))
		for name := range f.headers(kind) {
			names = append(names, name)
		}
		return int64(writeString(m.Memory(), uint32(ptr), uint32(cap), strings.Join(names, ",")))
	}).Export("get_header_names")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, m api.Module, kind uint32, namePtr, nameLen, ptr, cap int32) int64 {
		name := readString(m.Memory(), uint32(namePtr), uint32(nameLen))
		return int64(writeString(m.Memory(), uint32(ptr), uint32(cap), f.headers(kind)[name]))
	}).Export("get_header_values")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, m api.Module, kind uint32, ptr, cap int32) int64 {
		body := f.body(kind)
		if len(body) > int(cap) {
			return -1
		}
		if len(body) > 0 && !m.Memory().Write(uint32(ptr), body) {
			return -1
		}
		return int64(len(body))
	}).Export("read_body")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, m api.Module, kind uint32, ptr, length int32) {
		body := []byte(readString(m.Memory(), uint32(ptr), uint32(length)))
		f.mu.Lock()
		defer f.mu.Unlock()
		if kind == 0 {
			f.writtenRequest = body
		} else {
			f.writtenResponse = body
		}
	}).Export("write_body")

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context) uint32 {
		return f.statusCode
	}).Export("get_status_code")

	_, err := b.Instantiate(ctx)
	return err
}

// TestGuestHandlesRequestAndResponseOverWasm drives the real guest binary
// end-to-end: handle_request followed by handle_response, against a fake
// http_handler host module, asserting the guest negotiates response
// buffering and reports success (spec.md §6 "Guest exports").
func TestGuestHandlesRequestAndResponseOverWasm(t *testing.T) {
	fixture, err := filepath.Abs(guestFixturePath)
	require.NoError(t, err)
	if _, statErr := os.Stat(fixture); statErr != nil {
		t.Skipf("skipping: no precompiled guest fixture at %s (build with GOOS=wasip1 GOARCH=wasm go build -o %s ./cmd/guest)", fixture, guestFixturePath)
	}
	wasmBytes, err := os.ReadFile(fixture)
	require.NoError(t, err)

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	_, err = wasi_snapshot_preview1.Instantiate(ctx, rt)
	require.NoError(t, err)

	host := &fakeABI{
		configJSON:      []byte(`{"apiKey":"k","projectId":"p","bufferResponse":true,"treblleApiUrls":["https://127.0.0.1:1"]}`),
		uri:             "/users",
		method:          "POST",
		protocolVersion: "HTTP/1.1",
		sourceAddr:      "10.0.0.1:443",
		requestHeaders:  map[string]string{"Content-Type": "application/json"},
		responseHeaders: map[string]string{"Content-Type": "application/json"},
		requestBody:     []byte(`{"email":"a@b.com"}`),
		responseBody:    []byte(`{"ok":true}`),
		statusCode:      200,
	}
	require.NoError(t, host.register(ctx, rt))

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	require.NoError(t, err)
	defer compiled.Close(ctx)

	modCfg := wazero.NewModuleConfig().WithName("guest-under-test")
	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	require.NoError(t, err)
	defer mod.Close(ctx)

	handleRequest := mod.ExportedFunction("handle_request")
	require.NotNil(t, handleRequest)
	results, err := handleRequest.Call(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, results[0])

	handleResponse := mod.ExportedFunction("handle_response")
	require.NotNil(t, handleResponse)
	_, err = handleResponse.Call(ctx, 0, 0)
	require.NoError(t, err)

	require.Equal(t, hostabi.FeatureResponseBuffering, host.enabledFeatures)
	require.Equal(t, host.requestBody, host.writtenRequest)
	require.Equal(t, host.responseBody, host.writtenResponse)
}
