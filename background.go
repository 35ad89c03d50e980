package lattice

// background.go implements background flush and compaction scheduling.
//
// Reference: RocksDB v10.7.5
//   - db/db_impl/db_impl_compaction_flush.cc
//   - db/db_impl/db_impl_bg.cc

import (
	"fmt"
	"sync"

	"github.com/latticedb/lattice/internal/compaction"
	"github.com/latticedb/lattice/internal/testutil"
)

// BackgroundWork schedules and runs memtable flushes and leveled
// compactions on a dedicated goroutine.
type BackgroundWork struct {
	db *DBImpl

	picker            compaction.CompactionPicker
	maxSubcompactions int

	compactionCh   chan struct{}
	flushCh        chan struct{}
	shutdownCh     chan struct{}
	backgroundDone sync.WaitGroup

	mu                sync.Mutex
	compactionRunning bool
	flushRunning      bool
	backgroundErrors  int
	paused            bool
	pauseCond         *sync.Cond
}

// newBackgroundWork creates a new background work handler using leveled
// compaction sized from opts.
func newBackgroundWork(db *DBImpl, opts *Options) *BackgroundWork {
	picker := compaction.DefaultLeveledCompactionPicker()
	if opts.Level0FileNumCompactionTrigger > 0 {
		picker.L0CompactionTrigger = opts.Level0FileNumCompactionTrigger
	}
	if opts.MaxBytesForLevelBase > 0 {
		picker.MaxBytesForLevelBase = uint64(opts.MaxBytesForLevelBase)
	}

	maxSub := opts.MaxSubcompactions
	if maxSub <= 0 {
		maxSub = 1
	}

	bg := &BackgroundWork{
		db:                db,
		picker:            picker,
		maxSubcompactions: maxSub,
		compactionCh:      make(chan struct{}, 1),
		flushCh:           make(chan struct{}, 1),
		shutdownCh:        make(chan struct{}),
	}
	bg.pauseCond = sync.NewCond(&bg.mu)
	return bg
}

// Start starts the background worker goroutine.
func (bg *BackgroundWork) Start() {
	bg.backgroundDone.Add(1)
	go bg.backgroundLoop()
}

// Stop stops the background worker and waits for it to finish.
func (bg *BackgroundWork) Stop() {
	close(bg.shutdownCh)
	bg.backgroundDone.Wait()
}

// Pause pauses all background work.
func (bg *BackgroundWork) Pause() {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	bg.paused = true
}

// Continue resumes background work after Pause.
func (bg *BackgroundWork) Continue() {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	bg.paused = false
	bg.pauseCond.Broadcast()
}

// IsPaused returns true if background work is paused.
func (bg *BackgroundWork) IsPaused() bool {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	return bg.paused
}

// WaitIfPaused blocks the caller while background work is paused.
func (bg *BackgroundWork) WaitIfPaused() {
	bg.mu.Lock()
	for bg.paused {
		bg.pauseCond.Wait()
	}
	bg.mu.Unlock()
}

// MaybeScheduleCompaction signals that compaction may be needed.
func (bg *BackgroundWork) MaybeScheduleCompaction() {
	select {
	case bg.compactionCh <- struct{}{}:
	default:
	}
}

// MaybeScheduleFlush signals that flush may be needed.
func (bg *BackgroundWork) MaybeScheduleFlush() {
	select {
	case bg.flushCh <- struct{}{}:
	default:
	}
}

func (bg *BackgroundWork) backgroundLoop() {
	defer bg.backgroundDone.Done()

	for {
		select {
		case <-bg.shutdownCh:
			return
		case <-bg.flushCh:
			bg.doFlushWork()
		case <-bg.compactionCh:
			bg.doCompactionWork()
		}
	}
}

func (bg *BackgroundWork) doFlushWork() {
	_ = testutil.SP(testutil.SPBGFlushStart)

	bg.mu.Lock()
	if bg.flushRunning {
		bg.mu.Unlock()
		return
	}
	bg.flushRunning = true
	bg.mu.Unlock()

	defer func() {
		bg.mu.Lock()
		bg.flushRunning = false
		bg.mu.Unlock()
	}()

	bg.db.mu.Lock()
	needsFlush := bg.db.imm != nil
	bg.db.mu.Unlock()

	if !needsFlush {
		return
	}

	_ = testutil.SP(testutil.SPBGFlushExecute)

	if err := bg.db.Flush(nil); err != nil {
		bg.db.SetBackgroundError(err)
		bg.IncrementBackgroundErrors()
	}

	_ = testutil.SP(testutil.SPBGFlushComplete)

	bg.MaybeScheduleCompaction()
}

func (bg *BackgroundWork) doCompactionWork() {
	_ = testutil.SP(testutil.SPBGCompactionStart)

	bg.mu.Lock()
	if bg.compactionRunning {
		bg.mu.Unlock()
		return
	}
	bg.compactionRunning = true
	bg.mu.Unlock()

	defer func() {
		bg.mu.Lock()
		bg.compactionRunning = false
		bg.mu.Unlock()
	}()

	bg.db.mu.RLock()
	v := bg.db.versions.Current()
	if v != nil {
		v.Ref()
	}
	bg.db.mu.RUnlock()

	if v == nil {
		return
	}
	defer v.Unref()

	if !bg.picker.NeedsCompaction(v) {
		return
	}

	bg.db.mu.Lock()
	c := bg.picker.PickCompaction(v)
	if c == nil {
		bg.db.mu.Unlock()
		return
	}
	c.MarkFilesBeingCompacted(true)
	bg.db.mu.Unlock()

	_ = testutil.SP(testutil.SPBGCompactionPickComplete)

	defer func() {
		bg.db.mu.Lock()
		c.MarkFilesBeingCompacted(false)
		bg.db.mu.Unlock()
	}()

	_ = testutil.SP(testutil.SPBGCompactionExecute)
	testutil.MaybeKill(testutil.KPCompactionStart0)

	if err := bg.executeCompaction(c); err != nil {
		bg.db.SetBackgroundError(err)
		bg.IncrementBackgroundErrors()
		return
	}

	_ = testutil.SP(testutil.SPBGCompactionComplete)

	bg.MaybeScheduleCompaction()
}

// executeCompaction runs a single compaction job and applies its resulting
// version edit.
func (bg *BackgroundWork) executeCompaction(c *compaction.Compaction) error {
	bg.db.mu.Lock()
	dbPath := bg.db.name
	fs := bg.db.fs
	tableCache := bg.db.tableCache
	versions := bg.db.versions

	for _, input := range c.Inputs {
		for _, f := range input.Files {
			path := fmt.Sprintf("%s/%06d.sst", dbPath, f.FD.GetNumber())
			if !fs.Exists(path) {
				bg.db.mu.Unlock()
				return fmt.Errorf("input file %d no longer exists", f.FD.GetNumber())
			}
		}
	}
	bg.db.mu.Unlock()

	nextFileNum := func() uint64 {
		return versions.NextFileNumber()
	}

	job := compaction.NewCompactionJob(c, dbPath, fs, tableCache, nextFileNum)
	if _, err := job.Run(); err != nil {
		return err
	}

	testutil.MaybeKill(testutil.KPCompactionWriteSST0)
	testutil.MaybeKill(testutil.KPCompactionDeleteInput0)

	c.AddInputDeletions()

	bg.db.mu.Lock()
	defer bg.db.mu.Unlock()

	if err := versions.LogAndApply(c.Edit); err != nil {
		return err
	}

	bg.db.recalculateWriteStall()

	for _, input := range c.Inputs {
		for _, f := range input.Files {
			tableCache.Evict(f.FD.GetNumber())
		}
	}

	return nil
}

// IsCompactionPending returns true if compaction has been scheduled but not
// yet started.
func (bg *BackgroundWork) IsCompactionPending() bool {
	select {
	case <-bg.compactionCh:
		select {
		case bg.compactionCh <- struct{}{}:
		default:
		}
		return true
	default:
		return false
	}
}

// NumRunningFlushes returns the number of currently running flush operations.
func (bg *BackgroundWork) NumRunningFlushes() int {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	if bg.flushRunning {
		return 1
	}
	return 0
}

// NumRunningCompactions returns the number of currently running compaction
// operations.
func (bg *BackgroundWork) NumRunningCompactions() int {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	if bg.compactionRunning {
		return 1
	}
	return 0
}

// NumBackgroundErrors returns the number of background errors recorded so far.
func (bg *BackgroundWork) NumBackgroundErrors() int {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	return bg.backgroundErrors
}

// IncrementBackgroundErrors increments the background error count.
func (bg *BackgroundWork) IncrementBackgroundErrors() {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	bg.backgroundErrors++
}
