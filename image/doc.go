// Package image encodes and decodes arena images: a framed, block-compressed
// dump of every page of an arena followed by an opaque meta section.
//
// # Format
//
//	header   magic "BSLB" | version u16 | compression u8 | reserved u8 | pages u32 | blockPages u32
//	blocks   ceil(pages/blockPages) × [uncompressed u32][compressed u32][crc32c u32][data]
//	meta     length u64 | bytes | crc32c u32
//	trailer  magic "BSLB"
//
// A block whose compressed size is 0 is stored raw. Checksums are CRC32-C over
// the uncompressed bytes. Words are little endian.
//
// Blocks are compressed in parallel (bounded by WithWorkers) with LZ4 or
// ZSTD; throughput can be capped with WithIOLimit.
package image
