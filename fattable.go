package fat

import (
	"encoding/binary"
)

// Cluster is a cluster number read from the FAT. Ordinary cluster
// numbers occupy the low 28 bits; the sentinels live above them.
type Cluster uint32

const (
	// ClusterEOC terminates a cluster chain.
	ClusterEOC Cluster = 1<<28 + iota
	// ClusterBad marks a cluster that must not be allocated.
	ClusterBad
)

// Ptr reports whether c points at a next cluster rather than being a
// sentinel.
func (c Cluster) Ptr() bool { return c < 1<<28 }

// ReadFAT returns the FAT entry for the given cluster: the next
// cluster in the chain, ClusterEOC, or ClusterBad.
func (t *T) ReadFAT(index Cluster) (Cluster, error) {
	if index >= t.bpb.NumClusters {
		return 0, Error.Wrap(ErrInvalidCluster)
	}

	switch t.bpb.Type {
	case TypeFAT12:
		return t.readFat12(index)
	case TypeFAT16:
		return t.readFat16(index)
	default:
		return t.readFat32(index)
	}
}

func (t *T) readFat16(index Cluster) (Cluster, error) {
	shift := t.dev.Log2BlockSize() - 1
	b := uint64(index) >> shift
	r := uint64(index) & (1<<shift - 1)

	slot, err := t.CacheOpen(t.bpb.FatStart + b)
	if err != nil {
		return 0, err
	}

	raw := binary.LittleEndian.Uint16(slot.Data()[r*2:])
	switch {
	case raw >= 0xfff8:
		return ClusterEOC, nil
	case raw >= 0xfff0:
		return ClusterBad, nil
	}
	return Cluster(raw), nil
}

func (t *T) readFat32(index Cluster) (Cluster, error) {
	shift := t.dev.Log2BlockSize() - 2
	b := uint64(index) >> shift
	r := uint64(index) & (1<<shift - 1)

	slot, err := t.CacheOpen(t.bpb.FatStart + b)
	if err != nil {
		return 0, err
	}

	// The top 4 bits of a FAT32 entry are reserved and ignored.
	raw := binary.LittleEndian.Uint32(slot.Data()[r*4:]) & clusterMask
	switch {
	case raw >= 0x0ffffff8:
		return ClusterEOC, nil
	case raw >= 0x0ffffff0:
		return ClusterBad, nil
	}
	return Cluster(raw), nil
}

// readFat12 decodes the packed 12-bit entries: entry i lives in the
// 16-bit window at byte offset i+i/2, in the low 12 bits for even i
// and the high 12 bits for odd i. The window can straddle a block
// boundary, so the two bytes are fetched independently.
func (t *T) readFat12(index Cluster) (Cluster, error) {
	off := uint64(index) + uint64(index)>>1

	lo, err := t.fatByte(off)
	if err != nil {
		return 0, err
	}
	hi, err := t.fatByte(off + 1)
	if err != nil {
		return 0, err
	}

	raw := uint32(lo) | uint32(hi)<<8
	if index&1 != 0 {
		raw >>= 4
	}
	raw &= 0xfff

	switch {
	case raw >= 0xff8:
		return ClusterEOC, nil
	case raw >= 0xff0:
		return ClusterBad, nil
	}
	return Cluster(raw), nil
}

// fatByte reads one byte of the primary FAT at the given byte offset.
func (t *T) fatByte(off uint64) (byte, error) {
	log2 := t.dev.Log2BlockSize()

	slot, err := t.CacheOpen(t.bpb.FatStart + off>>log2)
	if err != nil {
		return 0, err
	}
	return slot.Data()[off&(1<<log2-1)], nil
}
