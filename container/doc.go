// Package container implements dynamic containers that live inside a single
// bit-addressable vector.
//
// # Architecture
//
// Containers are views, not owners. Every view is a small value holding its
// parent and its child index; all state is the bit range that pair denotes
// inside the root bitvec.Vector. Views are built on demand and thrown away:
//
//	root := container.NewRoot(vec)                  // child 0 = the whole vector
//	outer := container.NewVarSet(root, 0, layout)   // keyed, variable-length children
//	outer.Insert(42)
//	i, _ := outer.FindKey(42)
//	inner := container.NewArray(outer, i, 8)        // an 8-bit array inside child i
//	inner.InsertAt(0, 0xFF)
//
// Growing or shrinking any child propagates upward through every enclosing
// self-describing array, each of which shifts the recorded offsets of all later
// siblings (the offset cascade). Offsets are exact at all times.
//
// # Composition
//
// Layers compose statically through type parameters: Array[P], PairArray[P],
// VarArray[P], Set[P], VarSet[P], BitMap[P] and Heap[P] are all generic over the
// Parent they sit in. VarArray and VarSet are themselves Parents.
//
// # Errors
//
// Contract violations (indices out of range, malformed layouts, key collisions
// the caller should have checked) panic with an error wrapping ErrOutOfRange or
// ErrContract. Outcomes a caller legitimately branches on are returned as bool.
//
// # Concurrency
//
// Nothing here is safe for concurrent use. Callers serialize access to the
// underlying vector.
package container
