package valixdrive

import (
	"math/rand"
	"unsafe"
)

// BlockStatus is the per-block I/O state kept alongside a BlockBuffer.
type BlockStatus int

const (
	StatusNone BlockStatus = iota
	StatusReadError
	StatusWriteError
)

// BlockBuffer holds the contents of the sampled blocks in one contiguous
// allocation padded so every block slice satisfies the device's memory
// alignment, as O_DIRECT requires. Blocks are stored in visitation order,
// not in the order they appear on the device.
type BlockBuffer struct {
	data        []byte
	blockSize   int
	blockCount  int
	startOffset int

	// Status records the read or write error state of each block. It is
	// mutated only by the validation engine.
	Status []BlockStatus
}

// NewBlockBuffer allocates a buffer for blockCount blocks of blockSize
// bytes whose block slices are aligned to align bytes (0 for no
// constraint). The allocation is padded by align bytes and the start
// offset computed from the base address, since Go offers no aligned
// allocator for plain byte slices.
func NewBlockBuffer(blockSize, blockCount, align int) *BlockBuffer {
	data := make([]byte, blockCount*blockSize+align)
	startOffset := 0
	if align > 0 {
		if rem := int(uintptr(unsafe.Pointer(&data[0])) % uintptr(align)); rem != 0 {
			startOffset = align - rem
		}
	}
	return &BlockBuffer{
		data:        data,
		blockSize:   blockSize,
		blockCount:  blockCount,
		startOffset: startOffset,
		Status:      make([]BlockStatus, blockCount),
	}
}

// BlockSize returns the size in bytes of each block.
func (b *BlockBuffer) BlockSize() int {
	return b.blockSize
}

// BlockCount returns the number of blocks the buffer holds.
func (b *BlockBuffer) BlockCount() int {
	return b.blockCount
}

// StartOffset returns the padding before the first block.
func (b *BlockBuffer) StartOffset() int {
	return b.startOffset
}

// Block returns the byte slice backing block i. Indexes outside
// [0, BlockCount) are a programming error and panic.
func (b *BlockBuffer) Block(i int) []byte {
	if i < 0 || i >= b.blockCount {
		panic("valixdrive: block index out of range")
	}
	off := b.startOffset + i*b.blockSize
	return b.data[off : off+b.blockSize]
}

// FillRandom overwrites every block with bytes from rng. The payload only
// needs to be unpredictable enough to not collide with existing content,
// so a fast PRNG is fine.
func (b *BlockBuffer) FillRandom(rng *rand.Rand) {
	region := b.data[b.startOffset : b.startOffset+b.blockCount*b.blockSize]
	rng.Read(region)
}
