// Package bitslab provides a bit-granular storage engine for Go.
//
// A Store hands out Symbols, each naming one resizable bit-vector. Vectors
// live in slots of a slab allocator carved from a page arena of anonymous
// memory mappings; growing or shrinking a vector moves it between size
// classes transparently. On top of a vector, the container package composes
// arrays, sorted sets, self-describing variable-length arrays, interval maps
// and heaps that store everything inside the vector itself.
//
// # Quick Start
//
//	st, _ := bitslab.New()
//	defer st.Close()
//
//	sym := st.Create()
//	arr := container.NewArray(st.Root(sym), 0, 4) // a 4-bit array
//	arr.InsertAt(0, 0xA)
//	arr.InsertAt(1, 0x5)
//	fmt.Println(arr.Values()) // [10 5]
//
// # Interning
//
// Store.Intern keeps a content-ordered set of symbols and releases duplicates:
//
//	set := container.NewSet(st.Root(index), 0, 64, 0)
//	owner, inserted := st.Intern(set, sym)
//
// # Images
//
// A Store can be written out as a compressed image and rebuilt later, to a
// writer or to a blobstore.Store (local disk, MinIO or S3):
//
//	st.SaveImageTo(ctx, blobstore.NewLocalStore("/var/lib/slab"), "v1.img")
//	restored, _ := bitslab.LoadFrom(ctx, blobstore.NewLocalStore("/var/lib/slab"), "v1.img")
//
// Images are snapshots, not a durability layer: there is no log and no crash
// recovery.
//
// # Errors
//
// Misuse such as accessing a released symbol or reading past the end of a
// vector panics with an error wrapping ErrContractViolation (or the sentinel
// of the package that detected it). Image and blob store operations return
// errors; a malformed image yields *ErrCorruptImage.
//
// # Concurrency
//
// A Store is not safe for concurrent use. Image encoding compresses blocks in
// parallel internally.
package bitslab
