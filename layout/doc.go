// Package layout computes byte-exact C structure layouts from ordered field
// descriptors.
//
// The layout is never inferred from Go struct declarations: the field list
// is the wire order, and the result must match what a C compiler produces
// for the chosen Target.
//
// # Layout Rules
//
//   - Primitives: size equals alignment, except 64-bit scalars on targets
//     that align them to 4 (System V i386)
//   - Pointers, handles, size_t and strings: pointer width
//   - Non-dispatchable handles: always 64 bits
//   - Enums: 4 bytes; 64-bit flag sets: 8 bytes
//   - Arrays: element size times length, element alignment
//   - Nested structs: their own size and alignment
//   - Structs: fields at AlignTo(offset, fieldAlign), size padded to the
//     largest field alignment
//
// # Usage
//
//	calc := layout.NewCalculator(layout.LP64)
//	extent, err := calc.Compute(layout.Definition{
//	    Name: "VkExtent3D",
//	    Fields: []layout.Field{
//	        layout.F("width", layout.Uint32()),
//	        layout.F("height", layout.Uint32()),
//	        layout.F("depth", layout.Uint32()),
//	    },
//	})
//	// extent.Size == 12, extent.Align == 4
package layout
