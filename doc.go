package lattice

// Usage
//
// For runnable examples, see examples_test.go in this package. The
// examples are written against the public API and are kept up-to-date as
// the API evolves.
//
// Concurrency
//
// A DB instance is safe for concurrent use by multiple goroutines.
// Individual Iterator instances are not safe for concurrent use; each
// goroutine should use its own iterator.
//
// On-disk format
//
// SST files, the WAL, and the MANIFEST follow RocksDB v10.7.5's wire
// formats, so tooling built against that format can inspect this engine's
// files directly.
