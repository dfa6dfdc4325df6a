// Package s3 provides an Amazon S3 implementation of the blobstore.Store
// interface.
//
// # Usage
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	images := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "images/")
//	err := st.SaveImageTo(ctx, images, "nightly.img")
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads for large images, with CRC32C checksums
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
