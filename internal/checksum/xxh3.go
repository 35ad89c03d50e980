package checksum

import (
	"github.com/zeebo/xxh3"
)

// XXH3_64bits computes the 64-bit XXH3 hash of data using the default secret.
func XXH3_64bits(data []byte) uint64 {
	return xxh3.Hash(data)
}

// XXH3Checksum computes a 32-bit block checksum from the low 32 bits of the
// XXH3 hash, matching the truncation RocksDB applies for block trailers.
// Empty input yields 0, as in RocksDB.
func XXH3Checksum(data []byte) uint32 {
	if len(data) == 0 {
		return 0
	}
	return uint32(XXH3_64bits(data))
}

// XXH3ChecksumWithLastByte computes a block checksum over data and a single
// trailing byte (typically the block's compression-type byte) the way
// RocksDB does: the low 32 bits of XXH3(data), XORed with lastByte times
// 0x6b9083d9.
func XXH3ChecksumWithLastByte(data []byte, lastByte byte) uint32 {
	const randomPrime = 0x6b9083d9
	return uint32(XXH3_64bits(data)) ^ (uint32(lastByte) * randomPrime)
}
