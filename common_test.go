package fat

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/minio/highwayhash"
	"github.com/zeebo/assert"
	"github.com/zeebo/errs"

	"github.com/mfatfs/fat/internal/pcg"
)

var gen = pcg.New(uint64(time.Now().UnixNano()), 0)

// contentKey keys the deterministic test content. All zeros so any
// test can recompute what another one wrote.
var contentKey = make([]byte, 32)

// blockContent derives deterministic bytes for a block so write-back
// tests can recompute exactly what the device must hold.
func blockContent(block uint64, size int) []byte {
	buf := make([]byte, size)
	var ctr [16]byte

	binary.LittleEndian.PutUint64(ctr[:8], block)
	for off := 0; off < size; off += 8 {
		binary.LittleEndian.PutUint64(ctr[8:], uint64(off))
		binary.LittleEndian.PutUint64(buf[off:], highwayhash.Sum64(ctr[:], contentKey))
	}
	return buf
}

// memDevice is a map-backed block device with per-block fault
// injection. Unwritten blocks read as zeros.
type memDevice struct {
	log2      uint32
	blocks    map[uint64][]byte
	failRead  map[uint64]bool
	failWrite map[uint64]bool
}

func newMemDevice(log2 uint32) *memDevice {
	return &memDevice{
		log2:      log2,
		blocks:    make(map[uint64][]byte),
		failRead:  make(map[uint64]bool),
		failWrite: make(map[uint64]bool),
	}
}

func (m *memDevice) Log2BlockSize() uint32 { return m.log2 }

func (m *memDevice) Read(block uint64, count uint32, p []byte) error {
	bs := 1 << m.log2
	for i := uint32(0); i < count; i++ {
		b := block + uint64(i)
		if m.failRead[b] {
			return errs.New("injected read failure: block %d", b)
		}

		dst := p[int(i)<<m.log2:][:bs]
		if data, ok := m.blocks[b]; ok {
			copy(dst, data)
		} else {
			for j := range dst {
				dst[j] = 0
			}
		}
	}
	return nil
}

func (m *memDevice) Write(block uint64, count uint32, p []byte) error {
	bs := 1 << m.log2
	for i := uint32(0); i < count; i++ {
		b := block + uint64(i)
		if m.failWrite[b] {
			return errs.New("injected write failure: block %d", b)
		}
		m.blocks[b] = append([]byte(nil), p[int(i)<<m.log2:][:bs]...)
	}
	return nil
}

// bootParams holds the raw fields a test boot sector is built from.
type bootParams struct {
	bytesPerSector    uint16
	sectorsPerCluster uint8
	reservedSectors   uint16
	numFATs           uint8
	rootEntries       uint16
	totalSectors16    uint16
	fatSize16         uint16
	totalSectors32    uint32
	fatSize32         uint32
	rootCluster       uint32
	noSignature       bool
}

func bootSector(size int, p bootParams) []byte {
	buf := make([]byte, size)
	le := binary.LittleEndian

	le.PutUint16(buf[bpbBytesPerSector:], p.bytesPerSector)
	buf[bpbSectorsPerCluster] = p.sectorsPerCluster
	le.PutUint16(buf[bpbReservedSectors:], p.reservedSectors)
	buf[bpbNumFATs] = p.numFATs
	le.PutUint16(buf[bpbRootEntries:], p.rootEntries)
	le.PutUint16(buf[bpbTotalSectors16:], p.totalSectors16)
	le.PutUint16(buf[bpbFATSize16:], p.fatSize16)
	le.PutUint32(buf[bpbTotalSectors32:], p.totalSectors32)
	le.PutUint32(buf[bpbFATSize32:], p.fatSize32)
	le.PutUint32(buf[bpbRootCluster:], p.rootCluster)
	if !p.noSignature && len(buf) >= bpbSignature+2 {
		le.PutUint16(buf[bpbSignature:], bootSignature)
	}
	return buf
}

// floppyParams is the classic 1.44MB FAT12 layout.
func floppyParams() bootParams {
	return bootParams{
		bytesPerSector:    512,
		sectorsPerCluster: 1,
		reservedSectors:   1,
		numFATs:           2,
		rootEntries:       512,
		totalSectors16:    2880,
		fatSize16:         9,
	}
}

func fat16Params() bootParams {
	return bootParams{
		bytesPerSector:    512,
		sectorsPerCluster: 1,
		reservedSectors:   4,
		numFATs:           2,
		rootEntries:       512,
		totalSectors16:    65535,
		fatSize16:         32,
	}
}

func fat32Params() bootParams {
	return bootParams{
		bytesPerSector:    512,
		sectorsPerCluster: 1,
		reservedSectors:   4,
		numFATs:           2,
		totalSectors32:    70000,
		fatSize32:         64,
		rootCluster:       2,
	}
}

// bigBlockParams describes a volume aligned for 16KB device blocks.
func bigBlockParams() bootParams {
	return bootParams{
		bytesPerSector:    512,
		sectorsPerCluster: 32,
		reservedSectors:   32,
		numFATs:           2,
		rootEntries:       1024,
		totalSectors16:    40000,
		fatSize16:         64,
	}
}

func openVolume(t testing.TB, log2 uint32, p bootParams) (*memDevice, *T) {
	dev := newMemDevice(log2)
	dev.blocks[0] = bootSector(1<<log2, p)

	fs, err := Open(dev)
	assert.NoError(t, err)
	return dev, fs
}

// assertUniquePresent checks that no two present slots hold the same
// block.
func assertUniquePresent(t testing.TB, fs *T) {
	t.Helper()

	seen := make(map[uint64]bool)
	for i := range fs.slots {
		s := &fs.slots[i]
		if !s.present {
			continue
		}
		assert.That(t, !seen[s.index])
		seen[s.index] = true
	}
}
