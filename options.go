package lattice

// Configuration structs for opening a database and tuning read, write,
// flush, and compaction behavior.

import (
	"github.com/latticedb/lattice/internal/checksum"
	"github.com/latticedb/lattice/internal/compression"
	"github.com/latticedb/lattice/internal/logging"
	"github.com/latticedb/lattice/internal/vfs"
)

// Logger is an alias for the logging.Logger interface, letting callers plug
// in their own implementation.
type Logger = logging.Logger

// CompressionType selects the block compression codec used for SST data
// blocks.
type CompressionType = compression.Type

// Compression type constants.
const (
	NoCompression     = compression.NoCompression
	SnappyCompression = compression.SnappyCompression
	ZlibCompression   = compression.ZlibCompression
	LZ4Compression    = compression.LZ4Compression
	LZ4HCCompression  = compression.LZ4HCCompression
	ZstdCompression   = compression.ZstdCompression
)

// ChecksumType selects the checksum algorithm stored in block trailers.
type ChecksumType = checksum.Type

// Checksum type constants.
const (
	ChecksumTypeNoChecksum = checksum.TypeNoChecksum
	ChecksumTypeCRC32C     = checksum.TypeCRC32C
	ChecksumTypeXXH3       = checksum.TypeXXH3
)

// Options contains all configuration options for opening a database.
type Options struct {
	// CreateIfMissing causes Open to create the database if it does not exist.
	CreateIfMissing bool

	// ErrorIfExists causes Open to return an error if the database already exists.
	ErrorIfExists bool

	// ParanoidChecks enables additional checks for data integrity.
	ParanoidChecks bool

	// FS is the filesystem implementation to use.
	// If nil, the OS filesystem is used.
	FS vfs.FS

	// Comparator defines the order of keys in the database.
	// If nil, a default bytewise comparator is used.
	Comparator Comparator

	// WriteBufferSize is the size of a single memtable.
	// Default: 64MB
	WriteBufferSize int

	// MaxWriteBufferNumber is the maximum number of memtables to keep in memory.
	// Default: 2
	MaxWriteBufferNumber int

	// MaxOpenFiles is the maximum number of SST files to keep open.
	// Default: 1000
	MaxOpenFiles int

	// BlockSize is the approximate size of data blocks within SST files.
	// Default: 4KB
	BlockSize int

	// BlockRestartInterval is how often to create restart points in blocks.
	// Default: 16
	BlockRestartInterval int

	// ChecksumType specifies the checksum algorithm for SST files.
	// Default: CRC32C
	ChecksumType ChecksumType

	// FormatVersion is the SST file format version.
	FormatVersion uint32

	// Level0FileNumCompactionTrigger is the number of files in level-0 that
	// triggers compaction to level-1.
	// Default: 4
	Level0FileNumCompactionTrigger int

	// MaxBytesForLevelBase is the maximum total data size for level-1.
	// Default: 256MB
	MaxBytesForLevelBase int64

	// MaxBytesForLevelMultiplier multiplies the size budget between adjacent
	// levels. Default: 10.
	MaxBytesForLevelMultiplier float64

	// BloomFilterBitsPerKey is the number of bits per key for bloom filters.
	// 0 disables bloom filters. Default: 10
	BloomFilterBitsPerKey int

	// Level0SlowdownWritesTrigger is the number of L0 files that triggers
	// write slowdown. When L0 file count exceeds this, writes are delayed.
	// Default: 20
	Level0SlowdownWritesTrigger int

	// Level0StopWritesTrigger is the number of L0 files that stops writes.
	// When L0 file count exceeds this, all writes are blocked until
	// compaction reduces the count.
	// Default: 36
	Level0StopWritesTrigger int

	// DisableAutoCompactions disables background compaction.
	DisableAutoCompactions bool

	// Compression specifies the compression algorithm for SST blocks.
	// Default: NoCompression
	Compression CompressionType

	// MaxSubcompactions is the maximum number of subcompactions per compaction
	// job; subcompactions divide a compaction's key range for parallel work.
	// Default: 1 (no parallel subcompaction)
	MaxSubcompactions int

	// MaxBackgroundJobs bounds how many flush and compaction jobs may run
	// concurrently. Default: 2.
	MaxBackgroundJobs int

	// Logger is the logger for database operations.
	// If nil, a default logger writing to stderr is used.
	Logger Logger
}

// DefaultOptions returns a new Options with default values.
func DefaultOptions() *Options {
	return &Options{
		CreateIfMissing:                false,
		ErrorIfExists:                  false,
		ParanoidChecks:                 false,
		FS:                             nil, // Will use vfs.Default()
		Comparator:                     nil, // Will use BytewiseComparator
		WriteBufferSize:                64 * 1024 * 1024,
		MaxWriteBufferNumber:           2,
		MaxOpenFiles:                   1000,
		BlockSize:                      4096,
		BlockRestartInterval:           16,
		ChecksumType:                   ChecksumTypeCRC32C,
		FormatVersion:                  3,
		Level0FileNumCompactionTrigger: 4,
		MaxBytesForLevelBase:           256 * 1024 * 1024,
		MaxBytesForLevelMultiplier:     10,
		BloomFilterBitsPerKey:          10,
		Level0SlowdownWritesTrigger:    20,
		Level0StopWritesTrigger:        36,
		DisableAutoCompactions:         false,
		MaxSubcompactions:              1,
		MaxBackgroundJobs:              2,
		Logger:                         nil, // Will use defaultLogger
	}
}

// ReadOptions contains options for read operations.
type ReadOptions struct {
	// VerifyChecksums enables checksum verification when reading.
	VerifyChecksums bool

	// FillCache indicates whether to fill the block cache on reads.
	FillCache bool

	// Snapshot provides a consistent view of the database.
	// If nil, the most recent state is used.
	Snapshot *Snapshot

	// IterateUpperBound sets an upper bound for iteration.
	// The iterator will stop before any key >= this bound.
	IterateUpperBound []byte

	// IterateLowerBound sets a lower bound for iteration.
	// The iterator will skip any key < this bound.
	IterateLowerBound []byte
}

// DefaultReadOptions returns ReadOptions with default values.
func DefaultReadOptions() *ReadOptions {
	return &ReadOptions{
		VerifyChecksums: true,
		FillCache:       true,
		Snapshot:        nil,
	}
}

// WriteOptions contains options for write operations.
type WriteOptions struct {
	// Sync causes writes to be flushed to the WAL and fsynced before returning.
	// This provides the strongest durability guarantee but reduces throughput.
	Sync bool

	// DisableWAL disables the write-ahead log for this write.
	//
	// With DisableWAL=true, writes go directly to the memtable. If the
	// process crashes before Flush() is called, data will be lost.
	DisableWAL bool
}

// DefaultWriteOptions returns WriteOptions with default values.
func DefaultWriteOptions() *WriteOptions {
	return &WriteOptions{
		Sync:       false,
		DisableWAL: false,
	}
}

// FlushOptions contains options for flush operations.
type FlushOptions struct {
	// Wait indicates whether to wait for the flush to complete.
	Wait bool

	// AllowWriteStall indicates whether to allow write stalls.
	AllowWriteStall bool
}

// DefaultFlushOptions returns FlushOptions with default values.
func DefaultFlushOptions() *FlushOptions {
	return &FlushOptions{
		Wait:            true,
		AllowWriteStall: false,
	}
}

// CompactRangeOptions contains options for a manual CompactRange call.
type CompactRangeOptions struct {
	// ExclusiveManualCompaction prevents automatic compactions from running
	// concurrently with this manual compaction.
	ExclusiveManualCompaction bool

	// ChangeLevel moves the compacted data to TargetLevel after compaction.
	ChangeLevel bool

	// TargetLevel is the level to move data to when ChangeLevel is set.
	TargetLevel int
}

// DefaultCompactRangeOptions returns CompactRangeOptions with default values.
func DefaultCompactRangeOptions() *CompactRangeOptions {
	return &CompactRangeOptions{
		ExclusiveManualCompaction: true,
		ChangeLevel:               false,
		TargetLevel:               -1,
	}
}
