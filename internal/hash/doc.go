// Package hash provides the CRC32-Castagnoli checksum guarding image blocks
// and meta sections.
//
//	sum := hash.CRC32C(data)
package hash
