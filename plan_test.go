package valixdrive

import (
	"math/rand"
	"testing"
)

func TestPlanSpansDevice(t *testing.T) {
	cases := []struct {
		name       string
		deviceSize int64
		blockSize  int64
		slots      int
	}{
		{"4KiB blocks", 64 << 20, 4096, 576},
		{"1KiB blocks", 1_000_000, 1000, 10},
		{"one slot", 1 << 20, 4096, 1},
		{"every block", 64 * 512, 512, 64},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			refs, err := Plan(tc.deviceSize, tc.blockSize, tc.slots)
			if err != nil {
				t.Fatalf("Plan failed: %v", err)
			}
			if len(refs) != tc.slots {
				t.Fatalf("got %d refs, want %d", len(refs), tc.slots)
			}

			blocks := tc.deviceSize / tc.blockSize
			seen := make(map[int64]bool)
			prev := int64(-1)
			for i, ref := range refs {
				if ref.Slot != i {
					t.Errorf("ref %d has slot %d before shuffling", i, ref.Slot)
				}
				if ref.Number < 0 || ref.Number >= blocks {
					t.Errorf("slot %d block %d outside device (%d blocks)", i, ref.Number, blocks)
				}
				if ref.Number <= prev {
					t.Errorf("block numbers not strictly increasing at slot %d", i)
				}
				if seen[ref.Number] {
					t.Errorf("duplicate block number %d", ref.Number)
				}
				seen[ref.Number] = true
				prev = ref.Number
			}

			// The last slot always samples the device's final block.
			if got := refs[tc.slots-1].Number; got != blocks-1 {
				t.Errorf("last slot samples block %d, want %d", got, blocks-1)
			}
		})
	}
}

func TestPlanConfigurationErrors(t *testing.T) {
	cases := []struct {
		name       string
		deviceSize int64
		blockSize  int64
		slots      int
	}{
		{"size not divisible", 1_000_000, 4096, 10},
		{"more slots than blocks", 4096 * 4, 4096, 5},
		{"zero block size", 1 << 20, 0, 10},
		{"zero slots", 1 << 20, 4096, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Plan(tc.deviceSize, tc.blockSize, tc.slots)
			if err == nil {
				t.Fatal("expected configuration error")
			}
			if !IsCode(err, ErrCodeConfig) {
				t.Errorf("expected ErrCodeConfig, got %v", err)
			}
		})
	}
}

func TestShufflePreservesPairing(t *testing.T) {
	refs, err := Plan(64<<20, 4096, 128)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	byslot := make(map[int]int64, len(refs))
	for _, ref := range refs {
		byslot[ref.Slot] = ref.Number
	}

	Shuffle(refs, rand.New(rand.NewSource(1)))

	if len(refs) != len(byslot) {
		t.Fatalf("shuffle changed length: %d", len(refs))
	}
	moved := false
	for i, ref := range refs {
		if byslot[ref.Slot] != ref.Number {
			t.Errorf("slot %d lost its block number after shuffling", ref.Slot)
		}
		if ref.Slot != i {
			moved = true
		}
	}
	if !moved {
		t.Error("shuffle left the plan in slot order")
	}
}
