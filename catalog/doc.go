// Package catalog holds the read-only registry of enumeration and structure
// descriptors that the rest of the runtime consumes.
//
// A catalog is built once from one or more documents, generated from the
// API headers and stored as YAML, TOML or JSON, and is immutable afterwards:
//
//	enums:
//	  - name: VkStructureType
//	    values:
//	      - {name: VK_STRUCTURE_TYPE_APPLICATION_INFO, value: 0}
//	    max_enum: VK_STRUCTURE_TYPE_MAX_ENUM
//	structs:
//	  - name: VkApplicationInfo
//	    stype: VK_STRUCTURE_TYPE_APPLICATION_INFO
//	    fields:
//	      - {name: sType, type: VkStructureType}
//	      - {name: pNext, type: ptr}
//	      - {name: pApplicationName, type: string}
//
// Field types name a primitive (int8..uint64, float, double, size_t, ptr,
// handle, handle64, string, char, pad), an enum or a structure of the same
// catalog. len turns a field into a fixed array, or sizes char and pad;
// dims declares a multi-dimensional array; offset asserts the computed
// offset.
//
// Vulkan returns the embedded core subset for the host ABI.
package catalog
