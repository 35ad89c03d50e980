// picker.go selects which files a background compaction should merge next.
//
// LeveledCompactionPicker is the only CompactionPicker this engine ships:
// leveled compaction is the only style the storage format supports, unlike
// RocksDB which also offers universal and FIFO styles.
//
// Reference: RocksDB v10.7.5
//   - db/compaction/compaction_picker.h
//   - db/compaction/compaction_picker.cc
package compaction

import (
	"github.com/latticedb/lattice/internal/manifest"
	"github.com/latticedb/lattice/internal/version"
)

// CompactionPicker decides whether a Version needs compaction and, if so,
// which files should be merged.
type CompactionPicker interface {
	NeedsCompaction(v *version.Version) bool

	// PickCompaction selects files for the next compaction, or returns nil
	// if none is currently needed.
	PickCompaction(v *version.Version) *Compaction
}

// LeveledCompactionPicker scores each level by how far it exceeds its
// target size (L0 is scored by file count instead) and compacts the
// highest-scoring level into the next one down.
type LeveledCompactionPicker struct {
	NumLevels             int
	L0CompactionTrigger   int     // L0 file count that triggers compaction
	L0StopWritesTrigger   int     // L0 file count that stalls writes
	MaxBytesForLevelBase  uint64  // target size for L1
	MaxBytesForLevelMulti float64 // per-level size multiplier above L1
	TargetFileSizeBase    uint64  // output file size before per-level scaling (the L0 target)
	TargetFileSizeMulti   float64 // file-size multiplier applied once per level, L1 included
}

// DefaultLeveledCompactionPicker returns a picker with default settings.
func DefaultLeveledCompactionPicker() *LeveledCompactionPicker {
	return &LeveledCompactionPicker{
		NumLevels:             7,
		L0CompactionTrigger:   4,
		L0StopWritesTrigger:   20,
		MaxBytesForLevelBase:  256 * 1024 * 1024,
		MaxBytesForLevelMulti: 10.0,
		TargetFileSizeBase:    64 * 1024 * 1024,
		TargetFileSizeMulti:   1.0,
	}
}

func (p *LeveledCompactionPicker) NeedsCompaction(v *version.Version) bool {
	if v.NumFiles(0) >= p.L0CompactionTrigger {
		return true
	}
	for level := 1; level < p.NumLevels-1; level++ {
		if p.computeScore(v, level) >= 1.0 {
			return true
		}
	}
	return false
}

// PickCompaction picks L0 if it has backed up past its trigger, otherwise
// the single worst-scoring level above L0, or nil if nothing needs it.
func (p *LeveledCompactionPicker) PickCompaction(v *version.Version) *Compaction {
	if v.NumFiles(0) >= p.L0CompactionTrigger {
		return p.pickL0Compaction(v)
	}

	bestLevel, bestScore := -1, 0.0
	for level := 1; level < p.NumLevels-1; level++ {
		if score := p.computeScore(v, level); score > bestScore {
			bestScore, bestLevel = score, level
		}
	}

	if bestLevel >= 0 && bestScore >= 1.0 {
		return p.pickLevelCompaction(v, bestLevel, bestScore)
	}
	return nil
}

// computeScore rates how urgently level needs compacting; >= 1.0 means it
// does. L0 is rated by file count (size alone doesn't bound read
// amplification there, since L0 files can overlap); every other level is
// rated by total bytes against its target.
func (p *LeveledCompactionPicker) computeScore(v *version.Version, level int) float64 {
	if level == 0 {
		return float64(v.NumFiles(0)) / float64(p.L0CompactionTrigger)
	}

	target := p.targetSizeForLevel(level)
	if target == 0 {
		return 0
	}
	return float64(v.NumLevelBytes(level)) / float64(target)
}

// targetSizeForLevel returns L1's base size scaled up by MaxBytesForLevelMulti
// for each level above L1. L0 has no size target (see computeScore).
func (p *LeveledCompactionPicker) targetSizeForLevel(level int) uint64 {
	if level == 0 {
		return 0
	}
	size := p.MaxBytesForLevelBase
	for i := 1; i < level; i++ {
		size = uint64(float64(size) * p.MaxBytesForLevelMulti)
	}
	return size
}

// targetFileSizeForLevel returns the output file size a compaction into
// level should aim for.
func (p *LeveledCompactionPicker) targetFileSizeForLevel(level int) uint64 {
	size := p.TargetFileSizeBase
	for range level {
		size = uint64(float64(size) * p.TargetFileSizeMulti)
	}
	return size
}

// notBeingCompacted returns the subset of files not already claimed by
// another in-flight compaction.
func notBeingCompacted(files []*manifest.FileMetaData) []*manifest.FileMetaData {
	var out []*manifest.FileMetaData
	for _, f := range files {
		if !f.BeingCompacted {
			out = append(out, f)
		}
	}
	return out
}

// keyRange returns the smallest/largest key spanned by files, which may
// individually overlap (true of L0).
func keyRange(files []*manifest.FileMetaData) (smallest, largest []byte) {
	for _, f := range files {
		if smallest == nil || compareKeys(f.Smallest, smallest) < 0 {
			smallest = f.Smallest
		}
		if largest == nil || compareKeys(f.Largest, largest) > 0 {
			largest = f.Largest
		}
	}
	return smallest, largest
}

// pullOverlapInput builds the CompactionInputFiles for nextLevel covering
// [smallest, largest], excluding any file already being compacted. Returns
// nil if nothing in nextLevel overlaps and is available.
func pullOverlapInput(v *version.Version, nextLevel int, smallest, largest []byte) *CompactionInputFiles {
	available := notBeingCompacted(v.OverlappingInputs(nextLevel, smallest, largest))
	if len(available) == 0 {
		return nil
	}
	return &CompactionInputFiles{Level: nextLevel, Files: available}
}

// pickL0Compaction compacts every available L0 file (they may overlap each
// other, so all of them participate together) plus whatever they overlap
// in L1.
func (p *LeveledCompactionPicker) pickL0Compaction(v *version.Version) *Compaction {
	l0Files := v.Files(0)
	available := notBeingCompacted(l0Files)
	if len(available) == 0 {
		return nil
	}

	l0Input := &CompactionInputFiles{Level: 0, Files: append([]*manifest.FileMetaData(nil), available...)}
	smallest, largest := keyRange(available)

	inputs := []*CompactionInputFiles{l0Input}
	if l1Input := pullOverlapInput(v, 1, smallest, largest); l1Input != nil {
		inputs = append(inputs, l1Input)
	}

	c := NewCompaction(inputs, 1)
	c.Reason = CompactionReasonLevelL0FileNumTrigger
	c.Score = float64(len(l0Files)) / float64(p.L0CompactionTrigger)
	c.MaxOutputFileSize = p.targetFileSizeForLevel(1)
	return c
}

// pickLevelCompaction compacts the single largest available file at level
// (a simple heuristic: bigger files recover more read amplification per
// compaction) plus whatever it overlaps in level+1.
func (p *LeveledCompactionPicker) pickLevelCompaction(v *version.Version, level int, score float64) *Compaction {
	var picked *manifest.FileMetaData
	var maxSize uint64
	for _, f := range v.Files(level) {
		if f.BeingCompacted {
			continue
		}
		if f.FD.FileSize > maxSize {
			maxSize, picked = f.FD.FileSize, f
		}
	}
	if picked == nil {
		return nil
	}

	levelInput := &CompactionInputFiles{Level: level, Files: []*manifest.FileMetaData{picked}}
	nextLevel := level + 1

	inputs := []*CompactionInputFiles{levelInput}
	if nextInput := pullOverlapInput(v, nextLevel, picked.Smallest, picked.Largest); nextInput != nil {
		inputs = append(inputs, nextInput)
	}

	c := NewCompaction(inputs, nextLevel)
	c.Reason = CompactionReasonLevelMaxLevelSize
	c.Score = score
	c.MaxOutputFileSize = p.targetFileSizeForLevel(nextLevel)
	return c
}
