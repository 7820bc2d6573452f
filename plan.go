package valixdrive

import (
	"fmt"
	"math"
	"math/rand"
)

// BlockRef pairs a logical slot in the test plan with the physical block
// number it samples. Slot order is what the outcome map is indexed by;
// the visitation order of a plan may be shuffled without breaking the
// pairing.
type BlockRef struct {
	Slot   int
	Number int64
}

// Plan chooses slots block positions spanning the device. The address
// space is divided into slots equal-width regions and each slot samples
// the last block at or before its region's end: capacity misreporting
// shows up past the real backing store, so the high edge of each region
// is the interesting one.
//
// The device size must be an exact multiple of blockSize and slots must
// not exceed the device's block count; both are configuration errors
// detected before any I/O.
func Plan(deviceSize, blockSize int64, slots int) ([]BlockRef, error) {
	if blockSize <= 0 {
		return nil, NewError("PLAN", ErrCodeConfig,
			fmt.Sprintf("block size must be positive, got %d", blockSize))
	}
	if slots <= 0 {
		return nil, NewError("PLAN", ErrCodeConfig,
			fmt.Sprintf("slot count must be positive, got %d", slots))
	}
	if deviceSize%blockSize != 0 {
		return nil, NewError("PLAN", ErrCodeConfig,
			fmt.Sprintf("device size (%d bytes) is not a multiple of the block size (%d bytes)",
				deviceSize, blockSize))
	}
	blocks := deviceSize / blockSize
	if int64(slots) > blocks {
		return nil, NewError("PLAN", ErrCodeConfig,
			fmt.Sprintf("slot count %d exceeds the device's %d blocks", slots, blocks))
	}

	refs := make([]BlockRef, slots)
	for i := range refs {
		refs[i] = BlockRef{
			Slot:   i,
			Number: int64(math.Round(float64(i+1)*float64(blocks)/float64(slots))) - 1,
		}
	}
	return refs, nil
}

// Shuffle randomly permutes the visitation order of a plan so blocks are
// not tested in address order, which would correlate timing and caching
// effects with position. Each entry keeps its slot identity.
func Shuffle(refs []BlockRef, rng *rand.Rand) {
	rng.Shuffle(len(refs), func(i, j int) {
		refs[i], refs[j] = refs[j], refs[i]
	})
}
