// Package nativeabi is a native interop runtime for C-ABI graphics and
// compute APIs that describe themselves through generated enum and struct
// catalogs (the Vulkan family).
//
// The generated catalog is data. This module turns it into byte-exact
// native memory and back:
//
//	nativeabi/           Address, Memory and Allocator interfaces
//	├── enum/            enumeration codec: aliases, MAX_ENUM, bit flags
//	├── layout/          structure layout engine and ABI targets
//	├── marshal/         encode records into native buffers, decode them back
//	├── chain/           sType/pNext extension chains: attach and walk
//	├── catalog/         read-only descriptor registry, YAML/TOML/JSON loader
//	├── memory/          Go heap and wazero linear memory backends
//	├── errors/          structured error types
//	└── cmd/abi/         layout inspector CLI
//
// # Quick Start
//
//	cat, err := catalog.Vulkan()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	heap := memory.NewHeap()
//	defer heap.Close()
//
//	enc := marshal.NewEncoder(heap, heap)
//	info, err := enc.Encode(marshal.Record{
//	    "pApplicationName":   "demo",
//	    "applicationVersion": uint32(1),
//	    "pEngineName":        nil,
//	    "engineVersion":      uint32(0),
//	    "apiVersion":         uint32(1<<22 | 3<<12),
//	}, cat.MustStruct("VkApplicationInfo"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer info.Release()
//
// # Extension Chains
//
// Structures whose first two fields are a discriminator and a next-pointer
// can be linked:
//
//	ch, _ := chain.New(features2)
//	ch.Attach(vulkan12Features)
//	ch.Attach(vulkan13Features)
//	defer ch.Release()
//
//	for node, err := range ch.Walk() {
//	    ...
//	}
//
// # Thread Safety
//
// Descriptors, layouts and catalogs are immutable and safe for concurrent
// use. Buffers and chains belong to the call that created them.
package nativeabi
