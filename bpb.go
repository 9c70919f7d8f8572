package fat

import (
	"encoding/binary"
	"math/bits"

	"github.com/mfatfs/fat/internal/mon"
)

// Type identifies the FAT variant of a volume.
type Type int

const (
	TypeFAT12 Type = iota
	TypeFAT16
	TypeFAT32
)

func (t Type) String() string {
	switch t {
	case TypeFAT12:
		return "FAT12"
	case TypeFAT16:
		return "FAT16"
	case TypeFAT32:
		return "FAT32"
	}
	return "unknown"
}

// Boot sector field offsets. All multi-byte fields are little-endian.
// The 16-bit total-sector and FAT-size fields read as zero when the
// real value lives in the 32-bit field instead.
const (
	bpbBytesPerSector    = 0x00b // u16
	bpbSectorsPerCluster = 0x00d // u8
	bpbReservedSectors   = 0x00e // u16
	bpbNumFATs           = 0x010 // u8
	bpbRootEntries       = 0x011 // u16
	bpbTotalSectors16    = 0x013 // u16
	bpbFATSize16         = 0x016 // u16
	bpbSignature         = 0x1fe // u16, must be 0xaa55
	bpbTotalSectors32    = 0x020 // u32
	bpbFATSize32         = 0x024 // u32
	bpbRootCluster       = 0x02c // u32, FAT32 only
)

const (
	direntSize    = 32 // bytes per fixed root directory entry
	bootSignature = 0xaa55
	clusterMask   = 0x0fffffff // low 28 bits of a FAT32 entry
)

// Geometry describes where each region of the volume lives, in device
// block units. It is computed once when a handle is opened and never
// mutated afterward; remounting requires a fresh handle.
type Geometry struct {
	Type                 Type
	FatStart             uint64 // first block of the primary FAT
	FatSize              uint64 // blocks per FAT copy
	FatCount             uint32 // redundant FAT copies
	RootStart            uint64 // first block of the fixed root directory
	RootSize             uint64 // blocks in the fixed root directory
	ClusterStart         uint64 // first block of the cluster heap
	Log2BlocksPerCluster uint32
	NumClusters          Cluster // cluster numbering ends here; starts at 2
	RootCluster          Cluster // root chain start; zero except on FAT32
}

var parseThunk mon.Thunk // timing for parseBPB

// log2Exact returns the base-2 logarithm of v, failing unless v is a
// power of two.
func log2Exact(v uint32) (uint32, bool) {
	if v == 0 || v&(v-1) != 0 {
		return 0, false
	}
	return uint32(bits.TrailingZeros32(v)), true
}

// parseBPB decodes the boot parameter block from the first device
// block and reconciles its sector-based fields with the device block
// size. The raw slice must be one full device block.
func parseBPB(log2BlockSize uint32, raw []byte) (Geometry, error) {
	timer := parseThunk.Start()
	defer timer.Stop()

	var g Geometry

	// The BPB is sector addressed and a sector is at least 512
	// bytes, so smaller device blocks cannot hold it.
	if log2BlockSize < 9 {
		return g, Error.Wrap(ErrBlockSize)
	}

	le := binary.LittleEndian
	var (
		bytesPerSector    = uint32(le.Uint16(raw[bpbBytesPerSector:]))
		sectorsPerCluster = uint32(raw[bpbSectorsPerCluster])
		reservedSectors   = uint64(le.Uint16(raw[bpbReservedSectors:]))
		numFATs           = uint32(raw[bpbNumFATs])
		rootEntries       = uint64(le.Uint16(raw[bpbRootEntries:]))
		totalSectors      = uint64(le.Uint16(raw[bpbTotalSectors16:]))
		fatSectors        = uint64(le.Uint16(raw[bpbFATSize16:]))
		rootCluster       = Cluster(le.Uint32(raw[bpbRootCluster:]) & clusterMask)
	)

	if totalSectors == 0 {
		totalSectors = uint64(le.Uint32(raw[bpbTotalSectors32:]))
	}
	if fatSectors == 0 {
		fatSectors = uint64(le.Uint32(raw[bpbFATSize32:]))
	}

	log2BytesPerSector, ok := log2Exact(bytesPerSector)
	if !ok {
		return g, Error.Wrap(ErrInvalidBPB)
	}
	log2SectorsPerCluster, ok := log2Exact(sectorsPerCluster)
	if !ok {
		return g, Error.Wrap(ErrInvalidBPB)
	}
	if le.Uint16(raw[bpbSignature:]) != bootSignature {
		return g, Error.Wrap(ErrInvalidBPB)
	}
	if numFATs == 0 {
		return g, Error.Wrap(ErrInvalidBPB)
	}

	rootSectors := (rootEntries*direntSize + uint64(bytesPerSector) - 1) /
		uint64(bytesPerSector)

	// Convert the sector-addressed fields to block units.
	if log2BlockSize > log2BytesPerSector {
		shift := log2BlockSize - log2BytesPerSector

		if log2SectorsPerCluster < shift {
			return g, Error.Wrap(ErrBlockAlignment)
		}
		g.Log2BlocksPerCluster = log2SectorsPerCluster - shift

		if (reservedSectors|fatSectors|rootSectors)&(1<<shift-1) != 0 {
			return g, Error.Wrap(ErrBlockAlignment)
		}
		g.FatStart = reservedSectors >> shift
		g.FatSize = fatSectors >> shift
		g.RootSize = rootSectors >> shift
	} else {
		shift := log2BytesPerSector - log2BlockSize

		g.Log2BlocksPerCluster = log2SectorsPerCluster + shift
		g.FatStart = reservedSectors << shift
		g.FatSize = fatSectors << shift
		g.RootSize = rootSectors << shift
	}

	g.FatCount = numFATs
	g.NumClusters = Cluster((totalSectors-reservedSectors-
		fatSectors*uint64(numFATs)-rootSectors)>>log2SectorsPerCluster) + 2
	g.RootCluster = rootCluster
	g.RootStart = g.FatStart + g.FatSize*uint64(g.FatCount)
	g.ClusterStart = g.RootStart + g.RootSize

	// A volume with no fixed root directory region is FAT32; its
	// root lives in a cluster chain. Otherwise the cluster count
	// alone decides between FAT12 and FAT16.
	if rootSectors == 0 {
		g.Type = TypeFAT32
	} else {
		g.RootCluster = 0
		if g.NumClusters < 4085 {
			g.Type = TypeFAT12
		} else {
			g.Type = TypeFAT16
		}
	}

	return g, nil
}
