package lattice

// Write stall control: when L0 accumulates too many files or memtables
// pile up faster than they can flush, writers are slowed or stopped until
// background compaction catches up.
//
// Reference: RocksDB v10.7.5 db/write_controller.h

import (
	"sync"
	"time"
)

// WriteStallCondition describes the current write-throttling state.
type WriteStallCondition int

const (
	// WriteStallConditionNormal allows writes to proceed unthrottled.
	WriteStallConditionNormal WriteStallCondition = iota
	// WriteStallConditionDelayed slows writers proportionally to write size.
	WriteStallConditionDelayed
	// WriteStallConditionStopped blocks writers until the condition clears.
	WriteStallConditionStopped
)

// WriteStallCause identifies why a stall condition was raised.
type WriteStallCause int

const (
	WriteStallCauseNone WriteStallCause = iota
	WriteStallCauseMemtableLimit
	WriteStallCauseL0FileCountLimit
	WriteStallCausePendingCompactionBytes
)

// String returns a lowercase, snake_case name for the cause.
func (c WriteStallCause) String() string {
	switch c {
	case WriteStallCauseMemtableLimit:
		return "memtable_limit"
	case WriteStallCauseL0FileCountLimit:
		return "l0_file_count_limit"
	case WriteStallCausePendingCompactionBytes:
		return "pending_compaction_bytes"
	default:
		return "none"
	}
}

// WriteController throttles or blocks writers while background compaction
// works through a backlog, and wakes them once the backlog clears.
type WriteController struct {
	mu sync.Mutex
	cv *sync.Cond

	condition WriteStallCondition
	cause     WriteStallCause

	delayedWriteRate int64 // bytes/sec

	numStopped int
	numDelayed int
}

// NewWriteController creates a WriteController in the normal (unthrottled) state.
func NewWriteController() *WriteController {
	wc := &WriteController{
		delayedWriteRate: 16 * 1024 * 1024, // 16 MB/s default
	}
	wc.cv = sync.NewCond(&wc.mu)
	return wc
}

// SetDelayedWriteRate sets the bytes/sec rate used to compute delays while
// the condition is Delayed.
func (wc *WriteController) SetDelayedWriteRate(bytesPerSec int64) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.delayedWriteRate = bytesPerSec
}

// SetStallCondition updates the stall condition and cause, waking any
// writers blocked in MaybeStallWrite if the new condition is Normal.
func (wc *WriteController) SetStallCondition(condition WriteStallCondition, cause WriteStallCause) {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	if wc.condition == WriteStallConditionStopped && condition != WriteStallConditionStopped {
		wc.numStopped--
	} else if wc.condition != WriteStallConditionStopped && condition == WriteStallConditionStopped {
		wc.numStopped++
	}
	if wc.condition == WriteStallConditionDelayed && condition != WriteStallConditionDelayed {
		wc.numDelayed--
	} else if wc.condition != WriteStallConditionDelayed && condition == WriteStallConditionDelayed {
		wc.numDelayed++
	}

	wc.condition = condition
	wc.cause = cause

	if condition != WriteStallConditionStopped {
		wc.cv.Broadcast()
	}
}

// GetStallCondition returns the current condition and cause.
func (wc *WriteController) GetStallCondition() (WriteStallCondition, WriteStallCause) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.condition, wc.cause
}

// GetStats returns the number of writers currently counted as stopped and
// delayed (0 or 1 each, tracked at the controller level rather than per
// writer).
func (wc *WriteController) GetStats() (stopped, delayed int) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.numStopped, wc.numDelayed
}

// MaybeStallWrite blocks the caller according to the current condition:
// it sleeps proportionally to writeSize when Delayed, and blocks until
// the condition changes away from Stopped when Stopped.
func (wc *WriteController) MaybeStallWrite(writeSize int) {
	wc.mu.Lock()
	for wc.condition == WriteStallConditionStopped {
		wc.cv.Wait()
	}
	condition := wc.condition
	rate := wc.delayedWriteRate
	wc.mu.Unlock()

	if condition == WriteStallConditionDelayed && rate > 0 {
		delay := time.Duration(float64(writeSize) / float64(rate) * float64(time.Second))
		if delay > 0 {
			time.Sleep(delay)
		}
	}
}

// ReleaseWriteStall forces the condition to Normal, unblocking any writer
// parked in MaybeStallWrite regardless of cause. Used during shutdown so
// pending writers don't hang on a database that will never recompute its
// stall condition again.
func (wc *WriteController) ReleaseWriteStall() {
	wc.SetStallCondition(WriteStallConditionNormal, WriteStallCauseNone)
}

// RecalculateWriteStallCondition derives the write stall condition from
// the current memtable and L0 backlog, following the same thresholds as
// RocksDB's default write-stall heuristics: memtable count close to the
// configured max delays writes and at the max stops them; L0 file count
// follows the same delayed/stopped bands against its own triggers.
//
// Reference: RocksDB v10.7.5 db/column_family.cc RecalculateWriteStallConditions
func RecalculateWriteStallCondition(
	numUnflushed, numL0Files, maxWriteBufferNumber,
	level0SlowdownTrigger, level0StopTrigger int,
	disableAutoCompactions bool,
) (WriteStallCondition, WriteStallCause) {
	if numUnflushed >= maxWriteBufferNumber {
		return WriteStallConditionStopped, WriteStallCauseMemtableLimit
	}

	if !disableAutoCompactions {
		if numL0Files >= level0StopTrigger {
			return WriteStallConditionStopped, WriteStallCauseL0FileCountLimit
		}
		if numL0Files >= level0SlowdownTrigger {
			return WriteStallConditionDelayed, WriteStallCauseL0FileCountLimit
		}
	}

	if numUnflushed >= maxWriteBufferNumber-1 {
		return WriteStallConditionDelayed, WriteStallCauseMemtableLimit
	}

	return WriteStallConditionNormal, WriteStallCauseNone
}
