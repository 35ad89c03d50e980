// Package lattice implements an embedded, ordered key-value storage engine
// built on a log-structured merge tree: a memtable backed by a
// write-ahead log, immutable sorted-string table files organized into
// levels, and background compaction that keeps read amplification bounded.
//
// Reference: RocksDB v10.7.5 include/rocksdb/db.h
package lattice

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/latticedb/lattice/internal/batch"
	"github.com/latticedb/lattice/internal/compaction"
	"github.com/latticedb/lattice/internal/dbformat"
	"github.com/latticedb/lattice/internal/logging"
	"github.com/latticedb/lattice/internal/manifest"
	"github.com/latticedb/lattice/internal/memtable"
	"github.com/latticedb/lattice/internal/table"
	"github.com/latticedb/lattice/internal/testutil"
	"github.com/latticedb/lattice/internal/version"
	"github.com/latticedb/lattice/internal/vfs"
	"github.com/latticedb/lattice/internal/wal"
)

// Common errors returned by DB operations.
var (
	ErrDBClosed        = errors.New("lattice: database is closed")
	ErrNotFound        = errors.New("lattice: key not found")
	ErrDBExists        = errors.New("lattice: database already exists")
	ErrDBNotFound      = errors.New("lattice: database not found")
	ErrCorruption      = errors.New("lattice: corruption detected")
	ErrInvalidOptions  = errors.New("lattice: invalid options")
	ErrBackgroundError = errors.New("lattice: unrecoverable background error")
)

// DB is the interface implemented by *DBImpl. Open returns the concrete
// type directly; the interface exists so callers can depend on the
// narrower surface the engine actually exposes.
type DB interface {
	Put(opts *WriteOptions, key, value []byte) error
	Get(opts *ReadOptions, key []byte) ([]byte, error)
	Delete(opts *WriteOptions, key []byte) error
	Write(opts *WriteOptions, wb *WriteBatch) error
	MultiGet(opts *ReadOptions, keys [][]byte) ([][]byte, []error)
	NewIterator(opts *ReadOptions) Iterator
	GetSnapshot() *Snapshot
	ReleaseSnapshot(s *Snapshot)
	Flush(opts *FlushOptions) error
	SyncWAL() error
	FlushWAL(sync bool) error
	GetLatestSequenceNumber() uint64
	CompactRange(opts *CompactRangeOptions, start, end []byte) error
	GetProperty(name string) (string, bool)
	GetApproximateSizes(ranges []Range, flags SizeApproximationFlags) ([]uint64, error)
	Close() error
}

var _ DB = (*DBImpl)(nil)

// Open opens (or creates) a database at the given path.
//
// Reference: RocksDB v10.7.5 include/rocksdb/db.h DB::Open
func Open(path string, opts *Options) (*DBImpl, error) {
	_ = testutil.SP(testutil.SPDBOpen)

	if opts == nil {
		opts = DefaultOptions()
	}

	fs := opts.FS
	if fs == nil {
		fs = vfs.Default()
	}

	comparator := opts.Comparator
	if comparator == nil {
		comparator = DefaultComparator()
	}

	exists := fs.Exists(filepath.Join(path, "CURRENT"))

	if exists && opts.ErrorIfExists {
		return nil, ErrDBExists
	}
	if !exists && !opts.CreateIfMissing {
		return nil, ErrDBNotFound
	}
	if !exists {
		if err := fs.MkdirAll(path, 0755); err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger(logging.LevelWarn)
	}

	db := &DBImpl{
		name:            path,
		options:         opts,
		fs:              fs,
		comparator:      comparator,
		shutdownCh:      make(chan struct{}),
		tableCache:      table.NewTableCache(fs, table.DefaultTableCacheOptions()),
		writeController: NewWriteController(),
		logger:          logger,
	}
	db.immCond = sync.NewCond(&db.mu)
	db.writeCond = sync.NewCond(&db.mu)

	vsOpts := version.VersionSetOptions{
		DBName:              path,
		FS:                  fs,
		MaxManifestFileSize: 1024 * 1024 * 1024,
		NumLevels:           version.MaxNumLevels,
		ComparatorName:      comparator.Name(),
	}
	db.versions = version.NewVersionSet(vsOpts)

	if exists {
		if err := db.recover(); err != nil {
			return nil, err
		}
	} else {
		if err := db.create(); err != nil {
			return nil, err
		}
	}

	db.bgWork = newBackgroundWork(db, opts)
	db.bgWork.Start()
	db.bgWork.MaybeScheduleCompaction()

	_ = testutil.SP(testutil.SPDBOpenComplete)

	return db, nil
}

// DBImpl is the concrete implementation of the database.
type DBImpl struct {
	name string

	options    *Options
	fs         vfs.FS
	comparator Comparator

	mu sync.RWMutex

	versions *version.VersionSet

	logFile       vfs.WritableFile
	logFileNumber uint64
	logWriter     *wal.Writer

	mem *memtable.MemTable
	imm *memtable.MemTable
	seq uint64

	tableCache *table.TableCache

	snapshots    *Snapshot
	snapshotLock sync.Mutex

	bgWork *BackgroundWork

	writeController *WriteController

	// backgroundError is set when a fatal I/O error occurs (e.g. EPERM,
	// EROFS) in a background job, to prevent further writes while still
	// allowing reads.
	backgroundError error

	immCond *sync.Cond

	// writers is the pending-write queue: writers[0] is the current group
	// leader, everyone else is waiting on writeCond for either their batch
	// to be folded into a group or their turn to become leader.
	writers   []*dbWriter
	writeCond *sync.Cond

	logger Logger

	walDisabledWarned bool

	closed     bool
	shutdownCh chan struct{}
}

// create initializes a brand-new database directory.
func (db *DBImpl) create() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.versions.Create(); err != nil {
		return err
	}

	logNumber := db.versions.NextFileNumber()
	logPath := db.logFilePath(logNumber)

	logFile, err := db.fs.Create(logPath)
	if err != nil {
		return err
	}

	db.logFile = logFile
	db.logFileNumber = logNumber
	db.logWriter = wal.NewWriter(logFile, logNumber, false)

	db.mem = memtable.NewMemTable(db.comparator.Compare)
	db.seq = 0

	edit := &manifest.VersionEdit{
		HasLogNumber: true,
		LogNumber:    logNumber,
	}
	return db.versions.LogAndApply(edit)
}

// recover restores a database from an existing on-disk state: MANIFEST,
// then WAL replay for writes that never made it into an SST.
func (db *DBImpl) recover() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.versions.Recover(); err != nil {
		return err
	}

	db.seq = db.versions.LastSequence()

	if err := db.replayWAL(); err != nil {
		return fmt.Errorf("WAL replay failed: %w", err)
	}

	logNumber := db.versions.NextFileNumber()
	logPath := db.logFilePath(logNumber)

	logFile, err := db.fs.Create(logPath)
	if err != nil {
		return err
	}

	db.logFile = logFile
	db.logFileNumber = logNumber
	db.logWriter = wal.NewWriter(logFile, logNumber, false)

	// Only NextFileNumber advances here. LogNumber stays at the old value
	// so that a crash between this recovery and the next flush still
	// replays every unflushed log on the next open.
	// Reference: RocksDB db/db_impl/db_impl_open.cc RecoverLogFiles
	return db.versions.LogAndApply(&manifest.VersionEdit{})
}

// Put sets the value for key.
func (db *DBImpl) Put(opts *WriteOptions, key, value []byte) error {
	wb := batch.New()
	wb.Put(key, value)
	return db.Write(opts, newWriteBatchFromInternal(wb))
}

// Delete removes key.
func (db *DBImpl) Delete(opts *WriteOptions, key []byte) error {
	wb := batch.New()
	wb.Delete(key)
	return db.Write(opts, newWriteBatchFromInternal(wb))
}

// Get retrieves the value for key, consulting the active memtable, the
// immutable memtable (if any), and then SST files from L0 down.
func (db *DBImpl) Get(opts *ReadOptions, key []byte) ([]byte, error) {
	_ = testutil.SP(testutil.SPDBGet)

	if opts == nil {
		opts = DefaultReadOptions()
	}

	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return nil, ErrDBClosed
	}

	var snapshot uint64
	if opts.Snapshot != nil {
		snapshot = opts.Snapshot.Sequence()
	} else {
		snapshot = db.seq
	}

	mem, imm := db.mem, db.imm
	db.mu.RUnlock()

	_ = testutil.SP(testutil.SPDBGetMemtable)

	if mem != nil {
		value, found, deleted := mem.Get(key, dbformat.SequenceNumber(snapshot))
		if deleted {
			return nil, ErrNotFound
		}
		if found {
			return copySlice(value), nil
		}
	}

	if imm != nil {
		value, found, deleted := imm.Get(key, dbformat.SequenceNumber(snapshot))
		if deleted {
			return nil, ErrNotFound
		}
		if found {
			return copySlice(value), nil
		}
	}

	_ = testutil.SP(testutil.SPDBGetSST)

	db.mu.RLock()
	current := db.versions.Current()
	if current != nil {
		current.Ref()
	}
	db.mu.RUnlock()

	if current == nil {
		return nil, ErrNotFound
	}
	defer current.Unref()

	value, err := db.getFromVersion(current, key, dbformat.SequenceNumber(snapshot))
	_ = testutil.SP(testutil.SPDBGetComplete)
	return value, err
}

// MultiGet retrieves multiple values for keys, in the same order as keys.
func (db *DBImpl) MultiGet(opts *ReadOptions, keys [][]byte) ([][]byte, []error) {
	if len(keys) == 0 {
		return nil, nil
	}

	values := make([][]byte, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		values[i], errs[i] = db.Get(opts, key)
	}
	return values, errs
}

// getFromVersion searches SST files in a version for key, newest data first:
// all of L0 (which may overlap, so every file must be checked), then L1+
// where per-level files are disjoint but still scanned defensively since
// trivial moves can leave stale overlaps until the next compaction.
func (db *DBImpl) getFromVersion(v *version.Version, key []byte, seq dbformat.SequenceNumber) ([]byte, error) {
	l0Files := v.Files(0)
	for i := len(l0Files) - 1; i >= 0; i-- {
		f := l0Files[i]
		if db.comparator.Compare(key, extractUserKey(f.Smallest)) < 0 ||
			db.comparator.Compare(key, extractUserKey(f.Largest)) > 0 {
			continue
		}
		value, found, deleted, err := db.getFromFile(f, key, seq)
		if err != nil {
			return nil, err
		}
		if found {
			if deleted {
				return nil, ErrNotFound
			}
			return copySlice(value), nil
		}
	}

	for level := 1; level < v.NumLevels(); level++ {
		files := v.Files(level)
		for i := len(files) - 1; i >= 0; i-- {
			f := files[i]
			if db.comparator.Compare(key, extractUserKey(f.Smallest)) < 0 ||
				db.comparator.Compare(key, extractUserKey(f.Largest)) > 0 {
				continue
			}
			value, found, deleted, err := db.getFromFile(f, key, seq)
			if err != nil {
				return nil, err
			}
			if found {
				if deleted {
					return nil, ErrNotFound
				}
				return copySlice(value), nil
			}
		}
	}

	return nil, ErrNotFound
}

// getFromFile searches for key in a single SST file.
func (db *DBImpl) getFromFile(f *manifest.FileMetaData, key []byte, seq dbformat.SequenceNumber) ([]byte, bool, bool, error) {
	fileNum := f.FD.GetNumber()
	path := db.sstFilePath(fileNum)

	reader, err := db.tableCache.Get(fileNum, path)
	if err != nil {
		return nil, false, false, err
	}
	defer db.tableCache.Release(fileNum)

	seekKey := makeInternalKey(key, uint64(seq), dbformat.ValueTypeForSeek)

	iter := reader.NewIterator()
	iter.Seek(seekKey)

	if !iter.Valid() {
		return nil, false, false, nil
	}

	foundKey := iter.Key()
	if db.comparator.Compare(extractUserKey(foundKey), key) != 0 {
		return nil, false, false, nil
	}

	valueType := extractValueType(foundKey)
	if valueType == dbformat.TypeDeletion || valueType == dbformat.TypeSingleDeletion {
		return nil, true, true, nil
	}
	return iter.Value(), true, false, nil
}

// copySlice copies src so returned values never alias internal buffers
// (memtable entries, cached blocks) that callers must not be able to
// mutate.
//
// Reference: RocksDB v10.7.5 PinnableSlice::PinSelf()
func copySlice(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

func extractUserKey(internalKey []byte) []byte {
	if len(internalKey) < 8 {
		return internalKey
	}
	return internalKey[:len(internalKey)-8]
}

// makeInternalKey constructs an internal key from a user key, sequence
// number, and value type: user_key + 8-byte trailer (seq<<8 | type).
func makeInternalKey(userKey []byte, seq uint64, typ dbformat.ValueType) []byte {
	key := make([]byte, len(userKey)+8)
	copy(key, userKey)
	trailer := (seq << 8) | uint64(typ)
	for i := range 8 {
		key[len(userKey)+i] = byte(trailer >> (8 * i))
	}
	return key
}

func extractValueType(internalKey []byte) dbformat.ValueType {
	if len(internalKey) < 8 {
		return dbformat.TypeValue
	}
	return dbformat.ValueType(internalKey[len(internalKey)-8])
}

func extractSequenceNumber(internalKey []byte) dbformat.SequenceNumber {
	if len(internalKey) < 8 {
		return 0
	}
	trailer := uint64(0)
	for i := range 8 {
		trailer |= uint64(internalKey[len(internalKey)-8+i]) << (i * 8)
	}
	return dbformat.SequenceNumber(trailer >> 8)
}

// writeBufferSize returns the configured memtable size threshold that
// makeRoomForWrite compares the active memtable against.
func (db *DBImpl) writeBufferSize() int {
	if db.options != nil && db.options.WriteBufferSize > 0 {
		return db.options.WriteBufferSize
	}
	return 64 * 1024 * 1024
}

// makeRoomForWrite ensures the active memtable has room for the next write,
// sealing it into db.imm and rotating the WAL if it has grown past
// WriteBufferSize (or unconditionally when force is true, for an explicit
// Flush). REQUIRES: db.mu held. At most one sealed-but-unflushed memtable
// is allowed at a time, so a second arrival here blocks on immCond until
// the background flush drains the first one.
//
// Reference: RocksDB v10.7.5 db/db_impl/db_impl_write.cc MakeRoomForWrite
func (db *DBImpl) makeRoomForWrite(force bool) error {
	for {
		if db.closed {
			return ErrDBClosed
		}
		if db.backgroundError != nil {
			return fmt.Errorf("%w: %w", ErrBackgroundError, db.backgroundError)
		}

		if !force && int(db.mem.ApproximateMemoryUsage()) < db.writeBufferSize() {
			return nil
		}
		if db.mem.Empty() {
			return nil
		}

		if db.imm != nil {
			db.immCond.Wait()
			continue
		}

		newLogNumber := db.versions.NextFileNumber()
		logFile, err := db.fs.Create(db.logFilePath(newLogNumber))
		if err != nil {
			return err
		}

		oldLogFile := db.logFile

		db.imm = db.mem
		db.imm.SetNextLogNumber(newLogNumber)
		db.mem = memtable.NewMemTable(db.comparator.Compare)
		db.logFile = logFile
		db.logFileNumber = newLogNumber
		db.logWriter = wal.NewWriter(logFile, newLogNumber, false)
		db.recalculateWriteStall()

		if oldLogFile != nil {
			_ = oldLogFile.Close()
		}
		if db.bgWork != nil {
			db.bgWork.MaybeScheduleFlush()
		}

		return nil
	}
}

// memtableInserter applies batch records to a memtable captured at write
// time, so concurrent Flush() switching db.mem does not race the insert.
type memtableInserter struct {
	mem      *memtable.MemTable
	sequence uint64
}

func (m *memtableInserter) Put(key, value []byte) error {
	m.mem.Add(dbformat.SequenceNumber(m.sequence), dbformat.TypeValue, key, value)
	m.sequence++
	return nil
}

func (m *memtableInserter) Delete(key []byte) error {
	m.mem.Add(dbformat.SequenceNumber(m.sequence), dbformat.TypeDeletion, key, nil)
	m.sequence++
	return nil
}

func (m *memtableInserter) LogData(blob []byte) {}

// GetSnapshot creates a new point-in-time read snapshot.
func (db *DBImpl) GetSnapshot() *Snapshot {
	db.mu.RLock()
	seq := db.seq
	db.mu.RUnlock()

	s := newSnapshot(db, seq)

	db.snapshotLock.Lock()
	s.next = db.snapshots
	if db.snapshots != nil {
		db.snapshots.prev = s
	}
	db.snapshots = s
	db.snapshotLock.Unlock()

	return s
}

// ReleaseSnapshot releases a previously acquired snapshot.
func (db *DBImpl) ReleaseSnapshot(s *Snapshot) {
	s.Release()
}

func (db *DBImpl) releaseSnapshot(s *Snapshot) {
	db.snapshotLock.Lock()
	defer db.snapshotLock.Unlock()

	if s.prev != nil {
		s.prev.next = s.next
	} else {
		db.snapshots = s.next
	}
	if s.next != nil {
		s.next.prev = s.prev
	}
}

// Flush switches the active memtable to immutable and writes it to a new
// L0 SST file, waiting for any flush already in progress first.
func (db *DBImpl) Flush(opts *FlushOptions) error {
	if opts == nil {
		opts = DefaultFlushOptions()
	}

	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return ErrDBClosed
	}
	if db.backgroundError != nil {
		err := fmt.Errorf("%w: %w", ErrBackgroundError, db.backgroundError)
		db.mu.Unlock()
		return err
	}

	if err := db.makeRoomForWrite(true); err != nil {
		db.mu.Unlock()
		return err
	}
	db.mu.Unlock()

	if err := db.doFlush(); err != nil {
		return err
	}

	if db.bgWork != nil {
		db.bgWork.MaybeScheduleCompaction()
	}

	return nil
}

// SyncWAL syncs the current WAL to stable storage.
//
// Reference: RocksDB v10.7.5 include/rocksdb/db.h SyncWAL()
func (db *DBImpl) SyncWAL() error {
	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return ErrDBClosed
	}
	logWriter := db.logWriter
	db.mu.RUnlock()

	if logWriter == nil {
		return nil
	}
	return logWriter.Sync()
}

// FlushWAL flushes the WAL buffer; with sync=true it's equivalent to
// SyncWAL. The WAL writer here never buffers unsynced data across calls,
// so FlushWAL(false) is a no-op.
//
// Reference: RocksDB v10.7.5 include/rocksdb/db.h FlushWAL()
func (db *DBImpl) FlushWAL(sync bool) error {
	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return ErrDBClosed
	}
	logFile := db.logFile
	db.mu.RUnlock()

	if logFile == nil {
		return nil
	}
	if sync {
		return db.SyncWAL()
	}
	return nil
}

// GetLatestSequenceNumber returns the sequence number of the most recent write.
func (db *DBImpl) GetLatestSequenceNumber() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.seq
}

// Close stops background work and releases all resources. Close is
// idempotent.
func (db *DBImpl) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.writeCond.Broadcast()
	db.immCond.Broadcast()
	db.mu.Unlock()

	if db.bgWork != nil {
		db.bgWork.Stop()
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	close(db.shutdownCh)

	if db.logFile != nil {
		_ = db.logFile.Close()
		db.logFile = nil
		db.logWriter = nil
	}
	if db.tableCache != nil {
		_ = db.tableCache.Close()
	}
	if db.versions != nil {
		_ = db.versions.Close()
	}

	return nil
}

// SetBackgroundError records an unrecoverable background I/O error
// (e.g. from a failed flush or compaction), blocking further writes
// while still allowing reads.
func (db *DBImpl) SetBackgroundError(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.backgroundError == nil {
		db.backgroundError = err
	}
}

// GetBackgroundError returns the unrecoverable background error, if any.
func (db *DBImpl) GetBackgroundError() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.backgroundError
}

// logFilePath returns the path to a log file.
func (db *DBImpl) logFilePath(number uint64) string {
	return filepath.Join(db.name, logFileName(number))
}

func logFileName(number uint64) string {
	return fmt.Sprintf("%06d.log", number)
}

// recalculateWriteStall recalculates and updates the write stall condition.
// REQUIRES: db.mu is held.
func (db *DBImpl) recalculateWriteStall() {
	numUnflushed := 1
	if db.imm != nil {
		numUnflushed++
	}

	numL0Files := 0
	if v := db.versions.Current(); v != nil {
		numL0Files = len(v.Files(0))
	}

	condition, cause := RecalculateWriteStallCondition(
		numUnflushed,
		numL0Files,
		db.options.MaxWriteBufferNumber,
		db.options.Level0SlowdownWritesTrigger,
		db.options.Level0StopWritesTrigger,
		db.options.DisableAutoCompactions,
	)

	db.writeController.SetStallCondition(condition, cause)
}

// CompactRange manually compacts the key range [start, end). A nil start
// or end means "from the beginning" / "to the end" respectively.
func (db *DBImpl) CompactRange(opts *CompactRangeOptions, start, end []byte) error {
	if opts == nil {
		opts = DefaultCompactRangeOptions()
	}

	if err := db.Flush(nil); err != nil {
		return err
	}

	db.mu.RLock()
	v := db.versions.Current()
	if v != nil {
		v.Ref()
	}
	db.mu.RUnlock()

	if v == nil {
		return nil
	}
	defer v.Unref()

	for level := 0; level < v.NumLevels()-1; level++ {
		if err := db.compactLevel(v, level, start, end, opts); err != nil {
			return err
		}

		db.mu.RLock()
		v.Unref()
		v = db.versions.Current()
		if v != nil {
			v.Ref()
		}
		db.mu.RUnlock()

		if v == nil {
			return nil
		}
	}

	return nil
}

// compactLevel compacts files in level that overlap [start, end).
func (db *DBImpl) compactLevel(v *version.Version, level int, start, end []byte, opts *CompactRangeOptions) error {
	files := v.Files(level)
	if len(files) == 0 {
		return nil
	}

	var overlapping []*manifest.FileMetaData
	for _, f := range files {
		if f.BeingCompacted {
			continue
		}
		if len(start) > 0 && db.comparator.Compare(f.Largest, start) < 0 {
			continue
		}
		if len(end) > 0 && db.comparator.Compare(f.Smallest, end) >= 0 {
			continue
		}
		overlapping = append(overlapping, f)
	}
	if len(overlapping) == 0 {
		return nil
	}

	outputLevel := level + 1
	if opts.ChangeLevel && opts.TargetLevel > outputLevel {
		outputLevel = opts.TargetLevel
	}

	var smallest, largest []byte
	for _, f := range overlapping {
		if smallest == nil || db.comparator.Compare(f.Smallest, smallest) < 0 {
			smallest = f.Smallest
		}
		if largest == nil || db.comparator.Compare(f.Largest, largest) > 0 {
			largest = f.Largest
		}
	}

	outputFiles := v.OverlappingInputs(outputLevel, smallest, largest)
	var outputAvailable []*manifest.FileMetaData
	for _, f := range outputFiles {
		if !f.BeingCompacted {
			outputAvailable = append(outputAvailable, f)
		}
	}

	inputs := []*compaction.CompactionInputFiles{{Level: level, Files: overlapping}}
	if len(outputAvailable) > 0 {
		inputs = append(inputs, &compaction.CompactionInputFiles{Level: outputLevel, Files: outputAvailable})
	}

	c := compaction.NewCompaction(inputs, outputLevel)
	c.Reason = compaction.CompactionReasonManualCompaction

	db.mu.Lock()
	c.MarkFilesBeingCompacted(true)
	db.mu.Unlock()

	defer func() {
		db.mu.Lock()
		c.MarkFilesBeingCompacted(false)
		db.mu.Unlock()
	}()

	return db.bgWork.executeCompaction(c)
}

// Property name constants for GetProperty.
//
// Reference: RocksDB v10.7.5 include/rocksdb/db.h
const (
	PropertyNumImmutableMemTable        = "rocksdb.num-immutable-mem-table"
	PropertyNumImmutableMemTableFlushed = "rocksdb.num-immutable-mem-table-flushed"
	PropertyMemTableFlushPending        = "rocksdb.mem-table-flush-pending"
	PropertyCurSizeActiveMemTable       = "rocksdb.cur-size-active-mem-table"
	PropertyCurSizeAllMemTables         = "rocksdb.cur-size-all-mem-tables"
	PropertyNumEntriesActiveMemTable    = "rocksdb.num-entries-active-mem-table"
	PropertyNumDeletesActiveMemTable    = "rocksdb.num-deletes-active-mem-table"

	PropertyCompactionPending     = "rocksdb.compaction-pending"
	PropertyNumRunningFlushes     = "rocksdb.num-running-flushes"
	PropertyNumRunningCompactions = "rocksdb.num-running-compactions"

	PropertyNumFilesAtLevelPrefix = "rocksdb.num-files-at-level"
	PropertyLevelStats            = "rocksdb.levelstats"

	PropertyNumSnapshots       = "rocksdb.num-snapshots"
	PropertyOldestSnapshotTime = "rocksdb.oldest-snapshot-time"

	PropertyEstimateNumKeys = "rocksdb.estimate-num-keys"

	PropertyEstimateLiveDataSize = "rocksdb.estimate-live-data-size"
	PropertyTotalSstFilesSize    = "rocksdb.total-sst-files-size"
	PropertyLiveSstFilesSize     = "rocksdb.live-sst-files-size"

	PropertyBackgroundErrors = "rocksdb.background-errors"

	PropertyNumLiveVersions           = "rocksdb.num-live-versions"
	PropertyCurrentSuperVersionNumber = "rocksdb.current-super-version-number"
)

// GetProperty returns the value of a database property.
func (db *DBImpl) GetProperty(name string) (string, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return "", false
	}

	if after, ok := strings.CutPrefix(name, PropertyNumFilesAtLevelPrefix); ok {
		level, err := strconv.Atoi(after)
		if err != nil || level < 0 || level >= version.MaxNumLevels {
			return "", false
		}
		v := db.versions.Current()
		if v == nil {
			return "0", true
		}
		return strconv.Itoa(len(v.Files(level))), true
	}

	switch name {
	case PropertyNumImmutableMemTable:
		count := 0
		if db.imm != nil {
			count = 1
		}
		return strconv.Itoa(count), true

	case PropertyNumImmutableMemTableFlushed:
		return "0", true

	case PropertyMemTableFlushPending:
		pending := 0
		if db.imm != nil {
			pending = 1
		}
		return strconv.Itoa(pending), true

	case PropertyCurSizeActiveMemTable:
		if db.mem != nil {
			return strconv.FormatUint(uint64(db.mem.ApproximateMemoryUsage()), 10), true
		}
		return "0", true

	case PropertyCurSizeAllMemTables:
		size := uint64(0)
		if db.mem != nil {
			size += uint64(db.mem.ApproximateMemoryUsage())
		}
		if db.imm != nil {
			size += uint64(db.imm.ApproximateMemoryUsage())
		}
		return strconv.FormatUint(size, 10), true

	case PropertyNumEntriesActiveMemTable:
		if db.mem != nil {
			return strconv.FormatInt(db.mem.Count(), 10), true
		}
		return "0", true

	case PropertyNumDeletesActiveMemTable:
		return "0", true

	case PropertyCompactionPending:
		if db.bgWork != nil && db.bgWork.IsCompactionPending() {
			return "1", true
		}
		return "0", true

	case PropertyNumRunningFlushes:
		if db.bgWork != nil {
			return strconv.Itoa(db.bgWork.NumRunningFlushes()), true
		}
		return "0", true

	case PropertyNumRunningCompactions:
		if db.bgWork != nil {
			return strconv.Itoa(db.bgWork.NumRunningCompactions()), true
		}
		return "0", true

	case PropertyLevelStats:
		return db.getLevelStats(), true

	case PropertyNumSnapshots:
		return strconv.Itoa(db.countSnapshots()), true

	case PropertyOldestSnapshotTime:
		oldest := db.getOldestSnapshotTime()
		return strconv.FormatInt(oldest, 10), true

	case PropertyEstimateNumKeys:
		return strconv.FormatUint(db.estimateNumKeys(), 10), true

	case PropertyTotalSstFilesSize, PropertyLiveSstFilesSize, PropertyEstimateLiveDataSize:
		return strconv.FormatUint(db.getTotalSstFilesSize(), 10), true

	case PropertyBackgroundErrors:
		if db.bgWork != nil {
			return strconv.Itoa(db.bgWork.NumBackgroundErrors()), true
		}
		return "0", true

	case PropertyNumLiveVersions:
		if db.versions != nil {
			return strconv.Itoa(db.versions.NumLiveVersions()), true
		}
		return "1", true

	case PropertyCurrentSuperVersionNumber:
		if db.versions != nil {
			return strconv.FormatUint(db.versions.CurrentVersionNumber(), 10), true
		}
		return "0", true

	default:
		return "", false
	}
}

func (db *DBImpl) getLevelStats() string {
	v := db.versions.Current()
	if v == nil {
		return "Level Files Size(MB)\n"
	}

	var sb strings.Builder
	sb.WriteString("Level Files Size(MB)\n")
	for level := range v.NumLevels() {
		files := v.Files(level)
		var totalSize uint64
		for _, f := range files {
			totalSize += f.FD.FileSize
		}
		sizeMB := float64(totalSize) / (1024 * 1024)
		sb.WriteString(fmt.Sprintf("  %d   %5d %8.2f\n", level, len(files), sizeMB))
	}
	return sb.String()
}

func (db *DBImpl) countSnapshots() int {
	db.snapshotLock.Lock()
	defer db.snapshotLock.Unlock()

	count := 0
	for s := db.snapshots; s != nil; s = s.next {
		count++
	}
	return count
}

func (db *DBImpl) getOldestSnapshotTime() int64 {
	db.snapshotLock.Lock()
	defer db.snapshotLock.Unlock()

	if db.snapshots == nil {
		return 0
	}
	oldest := db.snapshots
	for s := db.snapshots.next; s != nil; s = s.next {
		if s.sequence < oldest.sequence {
			oldest = s
		}
	}
	return oldest.createdAt
}

func (db *DBImpl) estimateNumKeys() uint64 {
	var estimate uint64
	if db.mem != nil {
		estimate += uint64(db.mem.Count())
	}
	if db.imm != nil {
		estimate += uint64(db.imm.Count())
	}

	v := db.versions.Current()
	if v != nil {
		for level := range v.NumLevels() {
			for _, f := range v.Files(level) {
				// Rough estimate: one entry per 100 bytes of SST data.
				estimate += f.FD.FileSize / 100
			}
		}
	}
	return estimate
}

func (db *DBImpl) getTotalSstFilesSize() uint64 {
	v := db.versions.Current()
	if v == nil {
		return 0
	}
	var totalSize uint64
	for level := range v.NumLevels() {
		for _, f := range v.Files(level) {
			totalSize += f.FD.FileSize
		}
	}
	return totalSize
}
