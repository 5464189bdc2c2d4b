// Package chain links encoded structures into sType/pNext extension chains
// and walks them back.
//
// A Chain owns its head and every attached node. Attach appends a node by
// writing its address into the current tail's next pointer and stamping the
// node's discriminator from its layout. Attach never reorders nodes and does
// not look for cycles; Walk reports them.
//
// A Walker follows next pointers through any nativeabi.Memory. Each node's
// discriminator is looked up in a Resolver to find its layout, so chains of
// structures the walker did not build (for example output chains filled in
// by a driver) can be read as well.
package chain
