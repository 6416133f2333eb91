//go:build wasip1

// Command guest is the WASM guest binary: a thin go:wasmexport adapter over
// internal/handler, which owns every piece of actual behavior (spec.md §6
// "Guest exports").
package main

import (
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/handler"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/hostabi"
)

// h is the process-wide handler singleton. The host reuses one guest
// instance across many transactions (spec.md §9), so construction happens
// exactly once here and lazily inside Handler on first real call.
var h = handler.New(hostabi.New())

//go:wasmexport handle_request
func handleRequest() int64 {
	return h.HandleRequest()
}

//go:wasmexport handle_response
func handleResponse(reqCtx int32, isError int32) {
	h.HandleResponse(reqCtx, isError)
}

// main is required by the Go toolchain but never runs any of its own logic:
// the host calls handleRequest/handleResponse directly after instantiating
// the module (spec.md §6).
func main() {}
