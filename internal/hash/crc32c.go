package hash

import "hash/crc32"

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the CRC32-Castagnoli checksum of data. The standard library
// uses the SSE4.2 and ARMv8 CRC instructions when available.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}
