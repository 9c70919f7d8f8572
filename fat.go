// Package fat implements the core engine of a FAT filesystem driver:
// a write-back block cache, boot sector parsing, and FAT table access
// for FAT12, FAT16 and FAT32 volumes on a raw block device.
package fat

import (
	"github.com/mfatfs/fat/io"
)

// Cache sizing. The byte budget is shared by all slots, so devices
// with large blocks get fewer of them.
const (
	cacheBytes     = 16384
	cacheMaxBlocks = 16
)

// Stats counts the cache and device traffic through one handle. Every
// device transfer is a single block, so Read/ReadBlocks (and the write
// pair) only diverge if multi-block transfers are ever added.
type Stats struct {
	Read        uint64 // device read calls
	ReadBlocks  uint64 // blocks transferred by reads
	Write       uint64 // device write calls
	WriteBlocks uint64 // blocks transferred by writes
	CacheHit    uint64
	CacheMiss   uint64
	MirrorFail  uint64 // failed best-effort FAT mirror writes
}

// T is an open FAT filesystem. It owns a write-back cache of device
// blocks and the geometry parsed from the boot sector. It is not
// thread safe: sharing a handle requires external locking.
type T struct {
	dev   io.Device
	bpb   Geometry
	slots []Slot
	seq   uint32 // next cache sequence number
	stat  Stats
}

// Open mounts the filesystem on the device. It sizes the cache from
// the device block size, reads the boot sector through the cache, and
// parses it into the volume geometry.
func Open(dev io.Device) (*T, error) {
	log2 := dev.Log2BlockSize()

	size := uint64(cacheBytes) >> log2
	if size > cacheMaxBlocks {
		size = cacheMaxBlocks
	}
	if size == 0 {
		return nil, Error.Wrap(ErrBlockSize)
	}

	t := &T{
		dev:   dev,
		slots: make([]Slot, size),
	}
	for i := range t.slots {
		t.slots[i].buf = make([]byte, 1<<log2)
	}

	slot, err := t.CacheOpen(0)
	if err != nil {
		return nil, err
	}
	bpb, err := parseBPB(log2, slot.Data())
	if err != nil {
		return nil, err
	}
	t.bpb = bpb

	return t, nil
}

// Geometry returns the volume geometry parsed from the boot sector.
func (t *T) Geometry() Geometry { return t.bpb }

// Stats returns a snapshot of the running statistics.
func (t *T) Stats() Stats { return t.stat }

// Sync writes every dirty cache slot back to the device. All slots are
// attempted even when one fails; the returned error only says that at
// least one flush failed, not which.
func (t *T) Sync() error {
	failed := false
	for i := range t.slots {
		if err := t.flushSlot(&t.slots[i]); err != nil {
			failed = true
		}
	}
	if failed {
		return Error.Wrap(ErrIO)
	}
	return nil
}

// Close flushes the cache and releases it. The handle must not be used
// afterward.
func (t *T) Close() error {
	err := t.Sync()
	t.slots = nil
	return err
}
