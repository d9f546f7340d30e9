package entry

import "hash/crc32"

// Checksum computes the CRC32 of the payload using the IEEE 802.3 polynomial.
// The on-disk format checksums payload bytes only, never the length prefix.
func Checksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// VerifyChecksum reports whether crc matches the IEEE CRC32 of payload.
func VerifyChecksum(payload []byte, crc uint32) bool {
	return crc32.ChecksumIEEE(payload) == crc
}
