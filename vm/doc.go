// Package vm implements the Prota runtime.
//
// This package contains:
//   - Tagged value representation
//   - An arena heap of binary, array and frame objects addressed by handles
//   - Sequential and hashed frame maps with supermaps and copy-on-write sharing
//   - Prototype, parent and lexical lookup
//   - The bytecode interpreter and its handler-stack exceptions
//   - Paths, iterators, the printer and a tracing collector
package vm
