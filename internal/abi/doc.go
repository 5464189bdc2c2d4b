// Package abi holds arithmetic and value coercion shared by the layout
// engine and the marshalling runtime.
//
//   - helpers.go: alignment, overflow-checked sizes, type names for errors
//   - coerce.go: Go numeric values to fixed-width native integers and floats
//
// This package is internal to the module.
package abi
