// Package fs abstracts the file operations used to publish blobs so tests
// can inject failures.
//
// Production code uses [Default], backed by the os package. Tests wrap it in
// a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".put-", fs.Fault{FailAfterBytes: 1024})
//	// writes to temporary files fail after 1 KiB
package fs
