package block

import (
	"bytes"
	"encoding/binary"

	"github.com/latticedb/lattice/internal/encoding"
)

// Block is a parsed view over one decoded data or index block. Entries are
// prefix-compressed key/value pairs; a trailing array of restart-point
// offsets lets a reader binary-search into the middle of the block instead
// of scanning from the start.
//
// On-disk layout:
//
//	entries: [shared_bytes varint][unshared_bytes varint][value_len varint]
//	         [key_delta][value]  (repeated)
//	restarts: uint32 offset, one per restart point
//	footer: uint32 (restart count, optionally with the index-type bit set)
type Block struct {
	data []byte

	// restarts is data's byte offset where the restart-point array starts.
	restarts    int
	numRestarts int

	globalSeqno uint64
}

// noGlobalSeqno marks a Block with no sequence-number override installed.
const noGlobalSeqno = ^uint64(0)

// DataBlockIndexType selects how a reader locates entries within a data
// block: a plain binary search over restart points, or a hash index with
// binary search as a fallback for keys the hash table doesn't cover.
type DataBlockIndexType uint8

const (
	DataBlockBinarySearch  DataBlockIndexType = 0
	DataBlockBinaryAndHash DataBlockIndexType = 1
)

// indexTypeBit is the high bit of the packed restart-count footer used to
// carry the index type alongside the restart count.
//
// Reference: RocksDB table/block_based/data_block_footer.cc
const indexTypeBit = 31
const restartCountMask = (1 << indexTypeBit) - 1 // 0x7FFFFFFF

// PackIndexTypeAndNumRestarts combines an index type and restart count into
// the single uint32 stored as a data block's footer word.
func PackIndexTypeAndNumRestarts(indexType DataBlockIndexType, numRestarts uint32) uint32 {
	packed := numRestarts
	if indexType == DataBlockBinaryAndHash {
		packed |= 1 << indexTypeBit
	}
	return packed
}

// UnpackIndexTypeAndNumRestarts splits a data block's footer word back into
// its index type and restart count.
func UnpackIndexTypeAndNumRestarts(footer uint32) (DataBlockIndexType, uint32) {
	indexType := DataBlockBinarySearch
	if footer&(1<<indexTypeBit) != 0 {
		indexType = DataBlockBinaryAndHash
	}
	return indexType, footer & restartCountMask
}

// NewBlock parses data's trailing footer and restart array, keeping data
// itself unmodified and unshared — value slices returned later by an
// Iterator point directly into it, so the caller must keep it alive and
// must not mutate it for the lifetime of the Block.
func NewBlock(data []byte) (*Block, error) {
	if len(data) < 4 {
		return nil, ErrBadBlock
	}

	footer := binary.LittleEndian.Uint32(data[len(data)-4:])
	_, numRestarts := UnpackIndexTypeAndNumRestarts(footer)
	if numRestarts == 0 {
		return nil, ErrBadBlock
	}

	// restarts: uint32[numRestarts], then the uint32 footer word itself.
	trailerBytes := int(numRestarts+1) * 4
	if trailerBytes > len(data) {
		return nil, ErrBadBlock
	}

	return &Block{
		data:        data,
		restarts:    len(data) - trailerBytes,
		numRestarts: int(numRestarts),
		globalSeqno: noGlobalSeqno,
	}, nil
}

func (b *Block) Size() int { return len(b.data) }

// Data returns the raw, undecoded block bytes this Block was built from.
func (b *Block) Data() []byte { return b.data }

func (b *Block) NumRestarts() int { return b.numRestarts }

// GetRestartPoint returns the byte offset of the i-th restart point, or -1
// if i is out of range.
func (b *Block) GetRestartPoint(i int) int {
	if i < 0 || i >= b.numRestarts {
		return -1
	}
	return int(binary.LittleEndian.Uint32(b.data[b.restarts+i*4:]))
}

// DataEnd returns the offset where the entry data ends and the restart
// array begins.
func (b *Block) DataEnd() int { return b.restarts }

// SetGlobalSeqno installs a sequence number that a reader substitutes for
// every entry's own trailer, used when a bulk-loaded SST's entries all
// share one externally-assigned sequence number.
func (b *Block) SetGlobalSeqno(seqno uint64) { b.globalSeqno = seqno }

// GlobalSeqno returns the override installed by SetGlobalSeqno, or the
// disabled sentinel if none was set.
func (b *Block) GlobalSeqno() uint64 { return b.globalSeqno }

// Entry is one decoded key/value pair.
type Entry struct {
	Key   []byte
	Value []byte
}

// Iterator walks a Block's entries in key order, reassembling each key from
// its shared-prefix encoding against the prior key as it goes.
type Iterator struct {
	block       *Block
	data        []byte // alias of block.data
	restartsEnd int

	current    int // start offset of the entry currently positioned at
	nextOffset int // start offset of the following entry

	key   []byte // fully reassembled, owned buffer
	value []byte // slice into data — not owned
	valid bool
	err   error
}

func (b *Block) NewIterator() *Iterator {
	return &Iterator{
		block:       b,
		data:        b.data,
		restartsEnd: b.restarts,
	}
}

func (it *Iterator) Valid() bool   { return it.valid && it.err == nil }
func (it *Iterator) Key() []byte   { return it.key }
func (it *Iterator) Value() []byte { return it.value }
func (it *Iterator) Error() error  { return it.err }

// SeekToFirst positions at the block's first entry, which may start before
// the first restart point.
func (it *Iterator) SeekToFirst() {
	it.resetTo(0)
	it.Next()
}

// SeekToLast positions at the block's final entry by scanning forward from
// the last restart point and keeping whichever entry was read most recently
// when the scan runs out of entries.
func (it *Iterator) SeekToLast() {
	it.seekToRestartPoint(it.block.numRestarts - 1)
	last := it.scanToExhaustion(func(int) bool { return false })
	it.restoreSaved(last)
}

// Next decodes and moves to the entry immediately following the current
// one, or invalidates the iterator once the restart array is reached.
func (it *Iterator) Next() {
	if it.err != nil {
		it.valid = false
		return
	}
	if it.nextOffset >= it.restartsEnd {
		it.valid = false
		return
	}
	it.current = it.nextOffset
	it.parseCurrentEntry()
}

// Prev moves to the entry immediately preceding the current one.
// REQUIRES: Valid()
//
// Block entries only encode a forward delta (shared prefix with the
// previous key), so there is no way to decode backward directly: instead,
// back up to the restart point at or before the current entry (one further
// back if current position IS that restart point) and scan forward,
// remembering the last entry seen before reaching the original position.
func (it *Iterator) Prev() {
	if it.err != nil {
		it.valid = false
		return
	}

	original := it.current
	restartIndex := it.findRestartPointBefore(original)
	if it.block.GetRestartPoint(restartIndex) == original && restartIndex > 0 {
		restartIndex--
	}
	it.seekToRestartPoint(restartIndex)

	saved := it.scanToExhaustion(func(pos int) bool { return pos >= original })
	it.restoreSaved(saved)
}

// savedEntry snapshots one entry's position and decoded contents so a scan
// can keep "the best one seen so far" without rewinding.
type savedEntry struct {
	key        []byte
	value      []byte
	current    int
	nextOffset int
}

// scanToExhaustion calls Next repeatedly, saving the iterator's state after
// each step, until either the iterator runs out of entries or stop reports
// true for the current entry's offset (in which case that entry is NOT
// saved). Returns the last saved entry, or nil if none was saved.
func (it *Iterator) scanToExhaustion(stop func(pos int) bool) *savedEntry {
	var last *savedEntry
	for {
		it.Next()
		if !it.Valid() || stop(it.current) {
			break
		}
		last = &savedEntry{
			key:        append([]byte(nil), it.key...),
			value:      it.value,
			current:    it.current,
			nextOffset: it.nextOffset,
		}
	}
	return last
}

// restoreSaved re-installs a savedEntry as the iterator's current position,
// or invalidates the iterator if saved is nil.
func (it *Iterator) restoreSaved(saved *savedEntry) {
	if saved == nil {
		it.valid = false
		return
	}
	it.key = saved.key
	it.value = saved.value
	it.current = saved.current
	it.nextOffset = saved.nextOffset
	it.valid = true
}

// findRestartPointBefore returns the largest restart index whose offset is
// <= target.
func (it *Iterator) findRestartPointBefore(target int) int {
	left, right := 0, it.block.numRestarts-1
	for left < right {
		mid := (left + right + 1) / 2
		if it.block.GetRestartPoint(mid) <= target {
			left = mid
		} else {
			right = mid - 1
		}
	}
	return left
}

// resetTo clears decoded state and positions both current/nextOffset at
// offset, without decoding anything yet.
func (it *Iterator) resetTo(offset int) {
	it.key = it.key[:0]
	it.value = nil
	it.valid = false
	it.current = offset
	it.nextOffset = offset
}

func (it *Iterator) seekToRestartPoint(index int) {
	it.resetTo(max(it.block.GetRestartPoint(index), 0))
}

// parseCurrentEntry decodes the entry at it.current into it.key/it.value
// and advances it.nextOffset past it.
func (it *Iterator) parseCurrentEntry() {
	if it.current >= it.restartsEnd {
		it.valid = false
		return
	}

	data := it.data[it.current:]

	shared, n1, err := encoding.DecodeVarint32(data)
	if err != nil {
		it.err, it.valid = ErrBadBlock, false
		return
	}
	data = data[n1:]

	unshared, n2, err := encoding.DecodeVarint32(data)
	if err != nil {
		it.err, it.valid = ErrBadBlock, false
		return
	}
	data = data[n2:]

	valueLen, n3, err := encoding.DecodeVarint32(data)
	if err != nil {
		it.err, it.valid = ErrBadBlock, false
		return
	}
	data = data[n3:]

	if int(shared) > len(it.key) || len(data) < int(unshared)+int(valueLen) {
		it.err, it.valid = ErrBadBlock, false
		return
	}

	it.key = append(it.key[:shared], data[:unshared]...)
	data = data[unshared:]
	it.value = data[:valueLen]

	consumed := n1 + n2 + n3 + int(unshared) + int(valueLen)
	it.nextOffset = it.current + consumed
	it.valid = true
}

// Seek positions at the first entry with key >= target: binary search over
// restart points for the rightmost one not exceeding target, then a linear
// scan from there.
func (it *Iterator) Seek(target []byte) {
	left, right := 0, it.block.numRestarts-1
	for left < right {
		mid := (left + right + 1) / 2
		it.seekToRestartPoint(mid)
		it.Next()

		if !it.Valid() || it.compareKey(target) > 0 {
			right = mid - 1
		} else {
			left = mid
		}
	}

	it.seekToRestartPoint(left)
	for {
		it.Next()
		if !it.Valid() || it.compareKey(target) >= 0 {
			return
		}
	}
}

// compareKey orders the current key against target using internal-key
// semantics (see CompareInternalKeys).
func (it *Iterator) compareKey(target []byte) int {
	return CompareInternalKeys(it.key, target)
}

// CompareInternalKeys orders two internal keys: ascending by user key, and
// for equal user keys, descending by trailer (seq<<8|type) so that higher
// sequence numbers — newer writes — sort first.
//
// Internal key format: user_key + 8-byte little-endian trailer.
func CompareInternalKeys(a, b []byte) int {
	userA, trailerA := splitTrailer(a)
	userB, trailerB := splitTrailer(b)

	if cmp := bytes.Compare(userA, userB); cmp != 0 {
		return cmp
	}
	switch {
	case trailerA > trailerB:
		return -1
	case trailerA < trailerB:
		return 1
	default:
		return 0
	}
}

const trailerSize = 8

// splitTrailer separates an internal key into its user-key prefix and
// decoded trailer, tolerating a key shorter than a full trailer (treated as
// trailer 0, used for seek keys constructed without one).
func splitTrailer(key []byte) (userKey []byte, trailer uint64) {
	if len(key) < trailerSize {
		return key, 0
	}
	split := len(key) - trailerSize
	return key[:split], decodeTrailer(key[split:])
}

func decodeTrailer(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}
