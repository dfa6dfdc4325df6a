// Package blobstore provides the storage abstraction Store images are saved
// to and loaded from.
//
// Store is the interface for writing and reading immutable blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests
//   - LocalStore: local filesystem, atomic writes, mmap reads
//   - minio.Store: MinIO and other S3-compatible services
//   - s3.Store: Amazon S3 with multipart uploads and range reads
//
// # Custom Implementations
//
//	type Store interface {
//	    Put(ctx, name, data) error         // Atomic write
//	    Open(ctx, name) (Blob, error)      // Open for reading
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
