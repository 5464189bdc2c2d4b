// Package memory provides the address spaces native structures are
// marshalled into.
//
// Heap allocates from the Go heap. Its addresses are real process addresses
// that can be handed to native code: every allocation is word aligned and
// pinned with runtime.Pinner until it is freed, so it never moves while a
// native call holds it.
//
// Linear allocates inside a WebAssembly linear memory through wazero. Its
// addresses are 32-bit offsets, which makes it the backend for wasm32
// drivers and for tests that need deterministic addresses.
//
// Both implement nativeabi.Memory and nativeabi.Allocator and are safe for
// concurrent use.
package memory
