package lattice

// write_thread.go implements the write pipeline: writers queue up behind
// db.mu, the writer at the head of the queue becomes the group leader,
// folds in as many trailing compatible followers as fit under one record,
// and drops db.mu for the WAL append and memtable insert so concurrent
// readers are never blocked on an fsync.
//
// Reference: RocksDB v10.7.5 db/db_impl/db_impl_write.cc (JoinBatchGroup,
// EnterAsBatchGroupLeader, BuildBatchGroup, WriteToWAL)

import (
	"fmt"

	"github.com/latticedb/lattice/internal/batch"
	"github.com/latticedb/lattice/internal/testutil"
)

// maxWriteGroupSizeMultiple bounds a merged group to this many times the
// leader's own batch size, so one huge write can't starve everything
// queued up behind a run of small ones.
const maxWriteGroupSizeMultiple = 8

// maxWriteGroupBytes is the absolute group size cap used whenever the
// leader's batch is small enough that the multiple above would barely
// admit any followers.
const maxWriteGroupBytes = 1 << 20

// dbWriter is one pending Write() call sitting in db.writers.
type dbWriter struct {
	batch      *batch.WriteBatch
	sync       bool
	disableWAL bool

	done bool
	err  error
}

// Write applies a batch of operations atomically: every put/delete in the
// batch is assigned a contiguous run of sequence numbers, appended to the
// WAL (unless disabled), and then applied to the active memtable. Callers
// queue behind any write already in flight; the one at the head of the
// queue groups together as many trailing, compatible writers as it can
// before doing a single WAL append and memtable insert on their behalf.
func (db *DBImpl) Write(opts *WriteOptions, wb *WriteBatch) error {
	_ = testutil.SP(testutil.SPDBWrite)

	if opts == nil {
		opts = DefaultWriteOptions()
	}

	internal := wb.internalBatch()
	db.writeController.MaybeStallWrite(len(internal.Data()))

	w := &dbWriter{batch: internal, sync: opts.Sync, disableWAL: opts.DisableWAL}

	db.mu.Lock()
	db.writers = append(db.writers, w)
	for !w.done && db.writers[0] != w {
		db.writeCond.Wait()
	}
	if w.done {
		db.mu.Unlock()
		return w.err
	}

	// w is now the group leader: every writer behind it waits until this
	// call reaches completeWriteGroup.
	if db.closed {
		db.completeWriteGroup(1, 0, 0, ErrDBClosed)
		db.mu.Unlock()
		return ErrDBClosed
	}
	if db.backgroundError != nil {
		err := fmt.Errorf("%w: %w", ErrBackgroundError, db.backgroundError)
		db.completeWriteGroup(1, 0, 0, err)
		db.mu.Unlock()
		return err
	}

	if err := db.makeRoomForWrite(false); err != nil {
		db.completeWriteGroup(1, 0, 0, err)
		db.mu.Unlock()
		return err
	}

	group, groupSize := db.buildWriteGroup(w)
	count := group.Count()
	firstSeq := db.seq + 1
	group.SetSequence(firstSeq)

	mem := db.mem
	logWriter := db.logWriter
	disableWAL := w.disableWAL
	needSync := w.sync

	if disableWAL && !db.walDisabledWarned {
		db.walDisabledWarned = true
		if db.logger != nil {
			db.logger.Warnf("DisableWAL=true: writes will be lost if the process crashes before Flush()")
		}
	}

	// Drop the mutex for the WAL append/fsync and the memtable insert so
	// concurrent Get/GetSnapshot calls aren't blocked behind this group's I/O.
	db.mu.Unlock()

	var writeErr error
	if !disableWAL && logWriter != nil {
		_ = testutil.SP(testutil.SPDBWriteWAL)
		if _, err := logWriter.AddRecord(group.Data()); err != nil {
			writeErr = err
		} else if needSync {
			writeErr = logWriter.Sync()
		}
		_ = testutil.SP(testutil.SPDBWriteWALComplete)
	}

	if writeErr == nil {
		_ = testutil.SP(testutil.SPDBWriteMemtable)
		handler := &memtableInserter{sequence: firstSeq, mem: mem}
		writeErr = group.Iterate(handler)
		_ = testutil.SP(testutil.SPDBWriteMemtableComplete)
	}

	db.mu.Lock()
	db.completeWriteGroup(groupSize, firstSeq, count, writeErr)
	db.mu.Unlock()

	_ = testutil.SP(testutil.SPDBWriteComplete)

	return writeErr
}

// buildWriteGroup merges leader's batch with as many immediately-following
// writers in db.writers as share its sync/DisableWAL flags and fit within
// the group size cap. REQUIRES: db.mu held, leader == db.writers[0].
func (db *DBImpl) buildWriteGroup(leader *dbWriter) (*batch.WriteBatch, int) {
	if len(db.writers) == 1 {
		return leader.batch, 1
	}

	sizeLimit := leader.batch.Size() * maxWriteGroupSizeMultiple
	if leader.batch.Size() <= maxWriteGroupBytes/maxWriteGroupSizeMultiple {
		sizeLimit = maxWriteGroupBytes
	}

	group := leader.batch.Clone()
	groupSize := 1
	total := leader.batch.Size()

	for _, follower := range db.writers[1:] {
		if follower.sync != leader.sync || follower.disableWAL != leader.disableWAL {
			break
		}
		if total+follower.batch.Size() > sizeLimit {
			break
		}
		group.Append(follower.batch)
		total += follower.batch.Size()
		groupSize++
	}

	return group, groupSize
}

// completeWriteGroup advances db.seq (only on success, so a failed write
// never consumes sequence space), marks every writer in the group done,
// pops them off the queue, and wakes whoever is waiting to take over as
// the next leader. REQUIRES: db.mu held.
func (db *DBImpl) completeWriteGroup(groupSize int, firstSeq uint64, count uint32, err error) {
	if err == nil && count > 0 {
		db.seq = firstSeq + uint64(count) - 1
	}
	for i := 0; i < groupSize; i++ {
		db.writers[i].err = err
		db.writers[i].done = true
	}
	db.writers = db.writers[groupSize:]
	db.writeCond.Broadcast()
}
