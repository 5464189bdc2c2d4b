// Package enum implements the enumeration codec: integer-backed native
// enumerations with aliased names, MAX_ENUM sentinels and bit-flag sets.
//
// A Descriptor keeps its canonical variants in declaration order and a
// separate alias table. Encoding accepts any declared name; decoding always
// yields the first-declared name for an integer:
//
//	d := enum.NewBuilder("VkPresentModeKHR", enum.Closed).
//		Value("VK_PRESENT_MODE_IMMEDIATE_KHR", 0).
//		Value("VK_PRESENT_MODE_MAILBOX_KHR", 1).
//		Value("VK_PRESENT_MODE_FIFO_KHR", 2).
//		Alias("VK_PRESENT_MODE_VSYNC", "VK_PRESENT_MODE_FIFO_KHR").
//		MaxEnum("VK_PRESENT_MODE_MAX_ENUM_KHR", 0x7FFFFFFF).
//		MustBuild()
//
//	v, _ := d.Lookup("VK_PRESENT_MODE_VSYNC")
//	d.Encode(v)  // 2
//	d.Decode(2)  // VK_PRESENT_MODE_FIFO_KHR
//
// Closed enumerations reject undeclared integers with
// errors.ErrUnknownEnumValue. Flag enumerations never fail to decode:
// undeclared bits are carried through so values produced by a newer driver
// survive a round trip.
//
// Descriptors are immutable after Build and safe for concurrent use.
package enum
