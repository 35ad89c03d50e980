package lattice

// iterator.go implements the database iterator: a merge of the active
// memtable, the immutable memtable (if any), and every SST file in the
// current version, deduplicated by user key and filtered to the entries
// visible at a given sequence number.
//
// Reference: RocksDB v10.7.5 db/db_iter.h, db/db_iter.cc

import (
	"bytes"
	"errors"

	"github.com/latticedb/lattice/internal/dbformat"
	"github.com/latticedb/lattice/internal/manifest"
	"github.com/latticedb/lattice/internal/memtable"
	"github.com/latticedb/lattice/internal/table"
	"github.com/latticedb/lattice/internal/version"
)

// ErrIteratorInvalid indicates an operation was attempted on an invalid iterator.
var ErrIteratorInvalid = errors.New("lattice: iterator is not valid")

// Iterator provides a way to iterate over keys in the database in sorted
// order. An Iterator is not safe for concurrent use.
type Iterator interface {
	// Valid returns true if the iterator is positioned at a valid entry.
	Valid() bool

	// SeekToFirst positions the iterator at the first key.
	SeekToFirst()

	// SeekToLast positions the iterator at the last key.
	SeekToLast()

	// Seek positions the iterator at the first key >= target.
	Seek(target []byte)

	// SeekForPrev positions the iterator at the last key <= target.
	SeekForPrev(target []byte)

	// Next moves the iterator to the next key.
	Next()

	// Prev moves the iterator to the previous key.
	Prev()

	// Key returns the key at the current position. REQUIRES: Valid().
	Key() []byte

	// Value returns the value at the current position. REQUIRES: Valid().
	Value() []byte

	// Error returns any error that has occurred.
	Error() error

	// Close releases resources associated with the iterator.
	Close() error
}

// errorIterator is an iterator that always reports an error.
type errorIterator struct {
	err error
}

func (it *errorIterator) Valid() bool               { return false }
func (it *errorIterator) SeekToFirst()              {}
func (it *errorIterator) SeekToLast()               {}
func (it *errorIterator) Seek(target []byte)        {}
func (it *errorIterator) SeekForPrev(target []byte) {}
func (it *errorIterator) Next()                     {}
func (it *errorIterator) Prev()                     {}
func (it *errorIterator) Key() []byte               { return nil }
func (it *errorIterator) Value() []byte             { return nil }
func (it *errorIterator) Error() error               { return it.err }
func (it *errorIterator) Close() error              { return nil }

const (
	dirForward  = 1
	dirBackward = -1
)

// internalIterator gives a common shape to the memtable and SST iterators
// dbIterator merges over.
type internalIterator interface {
	Valid() bool
	Key() []byte
	Value() []byte
	SeekToFirst()
	SeekToLast()
	Seek(target []byte)
	Next()
	Prev()
	UserKey() []byte
	SeqNum() uint64
	Type() dbformat.ValueType
	Error() error
}

type memtableIterWrapper struct {
	iter *memtable.MemTableIterator
}

func (w *memtableIterWrapper) Valid() bool              { return w.iter.Valid() }
func (w *memtableIterWrapper) Key() []byte              { return w.iter.Key() }
func (w *memtableIterWrapper) Value() []byte            { return w.iter.Value() }
func (w *memtableIterWrapper) SeekToFirst()             { w.iter.SeekToFirst() }
func (w *memtableIterWrapper) SeekToLast()              { w.iter.SeekToLast() }
func (w *memtableIterWrapper) Seek(target []byte)       { w.iter.Seek(target) }
func (w *memtableIterWrapper) Next()                    { w.iter.Next() }
func (w *memtableIterWrapper) Prev()                    { w.iter.Prev() }
func (w *memtableIterWrapper) UserKey() []byte          { return w.iter.UserKey() }
func (w *memtableIterWrapper) SeqNum() uint64           { return uint64(w.iter.Sequence()) }
func (w *memtableIterWrapper) Type() dbformat.ValueType { return w.iter.Type() }
func (w *memtableIterWrapper) Error() error             { return w.iter.Error() }

// sstIterWrapper wraps an SST table iterator and decodes the internal key
// trailer on demand.
type sstIterWrapper struct {
	iter     *table.TableIterator
	fileNum  uint64
	released bool
}

func (w *sstIterWrapper) Valid() bool        { return w.iter != nil && w.iter.Valid() }
func (w *sstIterWrapper) Key() []byte        { return w.iter.Key() }
func (w *sstIterWrapper) Value() []byte      { return w.iter.Value() }
func (w *sstIterWrapper) SeekToFirst()       { w.iter.SeekToFirst() }
func (w *sstIterWrapper) SeekToLast()        { w.iter.SeekToLast() }
func (w *sstIterWrapper) Seek(target []byte) { w.iter.Seek(target) }
func (w *sstIterWrapper) Next()              { w.iter.Next() }
func (w *sstIterWrapper) Prev()              { w.iter.Prev() }
func (w *sstIterWrapper) Error() error       { return w.iter.Error() }

func (w *sstIterWrapper) UserKey() []byte {
	key := w.iter.Key()
	if len(key) < 8 {
		return key
	}
	return key[:len(key)-8]
}

func (w *sstIterWrapper) SeqNum() uint64 {
	key := w.iter.Key()
	if len(key) < 8 {
		return 0
	}
	tag := decodeFixed64(key[len(key)-8:])
	return tag >> 8
}

func (w *sstIterWrapper) Type() dbformat.ValueType {
	key := w.iter.Key()
	if len(key) < 8 {
		return dbformat.TypeValue
	}
	return dbformat.ValueType(key[len(key)-8])
}

func decodeFixed64(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

// dbIterator merges the memtable, immutable memtable, and current version's
// SST files into a single sorted stream, collapsing multiple versions of a
// user key to the newest one visible at its snapshot sequence and skipping
// deletion markers.
type dbIterator struct {
	db       *DBImpl
	snapshot *Snapshot
	err      error
	valid    bool

	memIter  *memtable.MemTableIterator
	immIter  *memtable.MemTableIterator
	sstIters []*sstIterWrapper

	version *version.Version

	iterators   []internalIterator
	currentIter int

	savedKey   []byte
	savedValue []byte

	direction int

	comparator Comparator
}

func (it *dbIterator) compareKeys(a, b []byte) int {
	if it.comparator != nil {
		return it.comparator.Compare(a, b)
	}
	return bytes.Compare(a, b)
}

func (it *dbIterator) keysEqual(a, b []byte) bool {
	return it.compareKeys(a, b) == 0
}

// NewIterator returns an iterator over the database's current contents (or
// a consistent snapshot, if opts.Snapshot is set).
func (db *DBImpl) NewIterator(opts *ReadOptions) Iterator {
	if opts == nil {
		opts = DefaultReadOptions()
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return &errorIterator{err: ErrDBClosed}
	}

	it := &dbIterator{
		db:         db,
		snapshot:   opts.Snapshot,
		comparator: db.comparator,
	}

	mem, imm := db.mem, db.imm
	if mem != nil {
		mem.Ref()
		it.memIter = mem.NewIterator()
		it.iterators = append(it.iterators, &memtableIterWrapper{iter: it.memIter})
	}
	if imm != nil {
		imm.Ref()
		it.immIter = imm.NewIterator()
		it.iterators = append(it.iterators, &memtableIterWrapper{iter: it.immIter})
	}

	v := db.versions.Current()
	if v != nil {
		v.Ref()
		it.version = v
		for level := range v.NumLevels() {
			for _, f := range v.Files(level) {
				sstIter := it.createSSTIterator(f)
				if sstIter != nil {
					it.sstIters = append(it.sstIters, sstIter)
					it.iterators = append(it.iterators, sstIter)
				}
			}
		}
	}

	return it
}

func (it *dbIterator) createSSTIterator(f *manifest.FileMetaData) *sstIterWrapper {
	fileNum := f.FD.GetNumber()
	path := it.db.sstFilePath(fileNum)

	reader, err := it.db.tableCache.Get(fileNum, path)
	if err != nil {
		it.err = err
		return nil
	}

	return &sstIterWrapper{iter: reader.NewIterator(), fileNum: fileNum}
}

func (it *dbIterator) Valid() bool {
	return it.valid && it.err == nil
}

func (it *dbIterator) SeekToFirst() {
	it.direction = dirForward
	it.err = nil
	for _, iter := range it.iterators {
		iter.SeekToFirst()
	}
	it.findNextValidEntry()
}

func (it *dbIterator) SeekToLast() {
	it.direction = dirBackward
	it.err = nil
	for _, iter := range it.iterators {
		iter.SeekToLast()
	}
	it.findPrevValidEntry()
}

func (it *dbIterator) Seek(target []byte) {
	it.direction = dirForward
	it.err = nil

	seekKey := makeInternalKey(target, uint64(dbformat.MaxSequenceNumber), dbformat.ValueTypeForSeek)
	for _, iter := range it.iterators {
		iter.Seek(seekKey)
	}
	it.findNextValidEntry()
}

func (it *dbIterator) SeekForPrev(target []byte) {
	it.direction = dirBackward
	it.Seek(target)
	if !it.Valid() {
		it.SeekToLast()
	} else if bytes.Compare(it.Key(), target) > 0 {
		it.Prev()
	}
}

func (it *dbIterator) Next() {
	if !it.valid {
		return
	}
	prevDirection := it.direction
	it.direction = dirForward

	if prevDirection == dirBackward {
		it.resyncIteratorsForward()
		return
	}

	for _, iter := range it.iterators {
		for iter.Valid() && it.keysEqual(iter.UserKey(), it.savedKey) {
			iter.Next()
		}
	}
	it.findNextValidEntry()
}

func (it *dbIterator) Prev() {
	if !it.valid {
		return
	}
	prevDirection := it.direction
	it.direction = dirBackward

	if prevDirection == dirForward {
		it.resyncIteratorsBackward()
		return
	}

	for _, iter := range it.iterators {
		for iter.Valid() && it.keysEqual(iter.UserKey(), it.savedKey) {
			iter.Prev()
		}
	}
	it.findPrevValidEntry()
}

// resyncIteratorsForward repositions all iterators past savedKey after a
// direction change from backward to forward.
func (it *dbIterator) resyncIteratorsForward() {
	seekKey := makeInternalKey(it.savedKey, 0, dbformat.TypeValue)
	for _, iter := range it.iterators {
		iter.Seek(seekKey)
		for iter.Valid() && it.keysEqual(iter.UserKey(), it.savedKey) {
			iter.Next()
		}
	}
	it.findNextValidEntry()
}

// resyncIteratorsBackward repositions all iterators before savedKey after a
// direction change from forward to backward.
func (it *dbIterator) resyncIteratorsBackward() {
	seekKey := makeInternalKey(it.savedKey, uint64(dbformat.MaxSequenceNumber), dbformat.ValueTypeForSeek)
	for _, iter := range it.iterators {
		iter.Seek(seekKey)

		if iter.Valid() {
			if it.compareKeys(iter.UserKey(), it.savedKey) > 0 {
				iter.Prev()
			} else {
				for iter.Valid() && it.keysEqual(iter.UserKey(), it.savedKey) {
					iter.Prev()
				}
			}
		} else {
			iter.SeekToLast()
			for iter.Valid() && it.keysEqual(iter.UserKey(), it.savedKey) {
				iter.Prev()
			}
		}
	}
	it.findPrevValidEntry()
}

// findNextValidEntry advances to the next user key visible at the
// iterator's snapshot sequence, skipping deletions and older versions.
func (it *dbIterator) findNextValidEntry() {
outerLoop:
	for {
		minIdx := -1
		var minKey []byte
		var minSeq uint64

		for i, iter := range it.iterators {
			if !iter.Valid() {
				continue
			}
			if err := iter.Error(); err != nil {
				it.err = err
				it.valid = false
				return
			}

			userKey := iter.UserKey()
			seq := iter.SeqNum()

			if it.snapshot != nil && seq > it.snapshot.Sequence() {
				iter.Next()
				continue outerLoop
			}

			if minIdx == -1 {
				minIdx, minKey, minSeq = i, userKey, seq
			} else if cmp := it.compareKeys(userKey, minKey); cmp < 0 {
				minIdx, minKey, minSeq = i, userKey, seq
			} else if cmp == 0 && seq > minSeq {
				minIdx, minSeq = i, seq
			}
		}

		if minIdx == -1 {
			it.valid = false
			return
		}

		if it.iterators[minIdx].Type() == dbformat.TypeDeletion {
			keyToSkip := append([]byte(nil), minKey...)
			for _, iter := range it.iterators {
				for iter.Valid() && it.keysEqual(iter.UserKey(), keyToSkip) {
					iter.Next()
				}
			}
			continue
		}

		it.savedKey = append([]byte(nil), minKey...)
		it.savedValue = append([]byte(nil), it.iterators[minIdx].Value()...)
		it.currentIter = minIdx
		it.valid = true
		return
	}
}

// findPrevValidEntry is the mirror of findNextValidEntry for reverse
// iteration.
func (it *dbIterator) findPrevValidEntry() {
outerLoop:
	for {
		maxIdx := -1
		var maxKey []byte
		var maxSeq uint64

		for i, iter := range it.iterators {
			if !iter.Valid() {
				continue
			}
			if err := iter.Error(); err != nil {
				it.err = err
				it.valid = false
				return
			}

			userKey := iter.UserKey()
			seq := iter.SeqNum()

			if it.snapshot != nil && seq > it.snapshot.Sequence() {
				iter.Prev()
				continue outerLoop
			}

			if maxIdx == -1 {
				maxIdx, maxKey, maxSeq = i, userKey, seq
			} else if cmp := it.compareKeys(userKey, maxKey); cmp > 0 {
				maxIdx, maxKey, maxSeq = i, userKey, seq
			} else if cmp == 0 && seq > maxSeq {
				maxIdx, maxSeq = i, seq
			}
		}

		if maxIdx == -1 {
			it.valid = false
			return
		}

		if it.iterators[maxIdx].Type() == dbformat.TypeDeletion {
			keyToSkip := append([]byte(nil), maxKey...)
			for _, iter := range it.iterators {
				for iter.Valid() && it.keysEqual(iter.UserKey(), keyToSkip) {
					iter.Prev()
				}
			}
			continue
		}

		it.savedKey = append([]byte(nil), maxKey...)
		it.savedValue = append([]byte(nil), it.iterators[maxIdx].Value()...)
		it.currentIter = maxIdx
		it.valid = true
		return
	}
}

func (it *dbIterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.savedKey
}

func (it *dbIterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.savedValue
}

func (it *dbIterator) Error() error {
	return it.err
}

func (it *dbIterator) Close() error {
	for _, sstIter := range it.sstIters {
		if !sstIter.released {
			it.db.tableCache.Release(sstIter.fileNum)
			sstIter.released = true
		}
	}
	if it.version != nil {
		it.version.Unref()
		it.version = nil
	}
	it.memIter = nil
	it.immIter = nil
	it.sstIters = nil
	it.iterators = nil
	return nil
}
