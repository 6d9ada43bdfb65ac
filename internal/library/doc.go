// Package library defines the domain model shared by the scanner, the
// reconciler, the store and the tree cache: categories, books, the
// relation edges between them, and the sentinel errors every layer uses.
//
// It also provides the one traversal utility the rest of the module
// relies on. Walk visits a category tree pre-order with an explicit
// worklist, so arbitrarily deep folder hierarchies never grow the call
// stack, and Flatten and Edges are built on top of it.
package library
