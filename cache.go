package fat

import (
	"github.com/cespare/xxhash"

	"github.com/mfatfs/fat/internal/debug"
	"github.com/mfatfs/fat/internal/mon"
)

// Slot holds one cached device block. At most one present slot exists
// for any block index. The sum field is the content checksum taken the
// last time the buffer matched the device, used to catch callers that
// modify a buffer without marking it dirty.
type Slot struct {
	index   uint64
	buf     []byte
	present bool
	dirty   bool
	seq     uint32
	sum     uint64
}

// Index returns the device block number the slot holds.
func (s *Slot) Index() uint64 { return s.index }

// Data returns the slot's block buffer. Callers that modify it must
// call MarkDirty before the next cache operation.
func (s *Slot) Data() []byte { return s.buf }

// MarkDirty records that the buffer was modified so that it is written
// back on eviction, sync, or close.
func (s *Slot) MarkDirty() { s.dirty = true }

var (
	openThunk  mon.Thunk // timing for CacheOpen
	flushThunk mon.Thunk // timing for flushSlot
)

// CacheOpen returns a slot holding the given device block, fetching it
// from the device on a miss. The slot is valid until the next cache
// operation on the handle. Eviction picks the slot that has gone
// unused for the most opens; the earliest-scanned slot wins ties.
func (t *T) CacheOpen(block uint64) (*Slot, error) {
	timer := openThunk.Start()
	defer timer.Stop()

	// One pass finds the block if cached, plus a free slot and the
	// oldest slot in case it is not.
	var (
		free      *Slot
		oldest    *Slot
		oldestAge uint32
	)
	for i := range t.slots {
		s := &t.slots[i]
		age := t.seq - s.seq

		if s.present && s.index == block {
			s.seq = t.seq
			t.seq++
			t.stat.CacheHit++
			debug.Assert("clean slot modified without MarkDirty", func() bool {
				return s.dirty || xxhash.Sum64(s.buf) == s.sum
			})
			return s, nil
		}

		if !s.present {
			free = s
		}
		if oldest == nil || age > oldestAge {
			oldestAge = age
			oldest = s
		}
	}

	s := free
	if s == nil {
		if err := t.flushSlot(oldest); err != nil {
			return nil, err
		}
		s = oldest
	}

	if err := t.dev.Read(block, 1, s.buf); err != nil {
		// The buffer contents are undefined now; the slot must
		// not remain present.
		s.present = false
		s.dirty = false
		return nil, Error.Wrap(ErrIO)
	}

	s.present = true
	s.dirty = false
	s.index = block
	s.seq = t.seq
	t.seq++
	s.sum = xxhash.Sum64(s.buf)

	t.stat.CacheMiss++
	t.stat.Read++
	t.stat.ReadBlocks++

	return s, nil
}

// flushSlot writes a dirty slot back to the device. Blocks inside the
// primary FAT are propagated to every mirror copy; mirror failures are
// counted but not fatal, since the redundant copies are advisory. The
// primary write failing is fatal and leaves the slot dirty.
func (t *T) flushSlot(s *Slot) error {
	if !s.present || !s.dirty {
		return nil
	}

	timer := flushThunk.Start()
	defer timer.Stop()

	if err := t.dev.Write(s.index, 1, s.buf); err != nil {
		return Error.Wrap(ErrIO)
	}
	t.stat.Write++
	t.stat.WriteBlocks++

	if s.index >= t.bpb.FatStart && s.index < t.bpb.FatStart+t.bpb.FatSize {
		b := s.index
		for i := uint32(1); i < t.bpb.FatCount; i++ {
			b += t.bpb.FatSize
			if err := t.dev.Write(b, 1, s.buf); err != nil {
				t.stat.MirrorFail++
				continue
			}
			t.stat.Write++
			t.stat.WriteBlocks++
		}
	}

	s.dirty = false
	s.sum = xxhash.Sum64(s.buf)
	return nil
}
