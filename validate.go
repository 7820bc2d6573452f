package valixdrive

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"

	"github.com/cavedon/valixdrive/internal/logging"
)

// Outcome is the validation state of one logical slot. A slot starts
// Unknown and is advanced by the protocol phases; the final map is what
// the reporting layer renders and what the validated capacity is derived
// from.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeValidated
	// OutcomeReadError marks a failed read, of either the original
	// content or the random payload read-back.
	OutcomeReadError
	// OutcomeReadSuccessful marks a slot whose original content was read
	// but which was never advanced further (read-only runs).
	OutcomeReadSuccessful
	OutcomeWriteError
	// OutcomeNoStorage marks a block that accepted a write without error
	// but read back different bytes: the signature of a device whose
	// advertised capacity is not physically backed.
	OutcomeNoStorage
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnknown:
		return "unknown"
	case OutcomeValidated:
		return "validated"
	case OutcomeReadError:
		return "read error"
	case OutcomeReadSuccessful:
		return "read successful"
	case OutcomeWriteError:
		return "write error"
	case OutcomeNoStorage:
		return "no storage"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Phase names one step of the validation protocol.
type Phase string

const (
	PhaseReadOriginal Phase = "read-original"
	PhaseWriteRandom  Phase = "write-random"
	PhaseReadBack     Phase = "read-back"
	PhaseRestore      Phase = "restore"
)

// Options configures a validation run.
type Options struct {
	// BlockSize is the test block size in bytes. The device size must be
	// an exact multiple of it.
	BlockSize int64

	// NumBlocks is the number of blocks sampled across the device.
	NumBlocks int

	// ReadOnly stops the run after the original blocks have been read.
	ReadOnly bool

	// SkipRestore skips both reading the original blocks and restoring
	// them afterwards. The run is then destructive.
	SkipRestore bool

	// Rand drives the visitation shuffle and the random payload. Nil
	// seeds a PRNG from the clock; the payload is a test pattern, not a
	// security artifact.
	Rand *rand.Rand

	// Logger receives per-block warnings and phase summaries. Nil uses
	// the package default.
	Logger *logging.Logger

	// Observer is notified of every device operation. Nil disables
	// observation.
	Observer Observer

	// Progress, when set, is called after every block of every phase.
	Progress func(phase Phase, completed, total int)
}

// Report is the result of a validation run.
type Report struct {
	// Outcomes holds one entry per slot, indexed by slot (not visitation)
	// order.
	Outcomes []Outcome

	// ValidatedBytes is the size of the longest from-zero prefix of the
	// device confirmed to durably store data.
	ValidatedBytes int64

	// Per-phase elapsed-time statistics.
	ReadOriginal DurationStats
	WriteRandom  DurationStats
	ReadBack     DurationStats
	Restore      DurationStats
}

// Validate runs the spot-check protocol against dev: read the original
// content of the planned blocks, overwrite them with random data, read
// back and compare, then restore.
//
// Per-block I/O failures are recorded in the outcome map and never abort
// the run. The fatal cases are a configuration error before any I/O and
// an original-read failure while restoration is requested; the latter
// still returns the partial report alongside the error so the caller can
// present the map.
func Validate(dev Device, opts Options) (*Report, error) {
	refs, err := Plan(dev.Size(), opts.BlockSize, opts.NumBlocks)
	if err != nil {
		return nil, err
	}

	e := &engine{
		dev:      dev,
		opts:     opts,
		logger:   opts.Logger,
		observer: opts.Observer,
		rng:      opts.Rand,
		refs:     refs,
		report:   &Report{Outcomes: make([]Outcome, opts.NumBlocks)},
	}
	if e.logger == nil {
		e.logger = logging.Default()
	}
	if e.observer == nil {
		e.observer = NoOpObserver{}
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	Shuffle(e.refs, e.rng)
	return e.run()
}

type engine struct {
	dev      Device
	opts     Options
	logger   *logging.Logger
	observer Observer
	rng      *rand.Rand
	refs     []BlockRef
	report   *Report
}

func (e *engine) run() (*Report, error) {
	var original *BlockBuffer

	if !e.opts.SkipRestore {
		e.logger.Info("reading original blocks", "blocks", len(e.refs))
		original = e.newBuffer()
		e.report.ReadOriginal = e.readPass(PhaseReadOriginal, original, nil)

		hasReadErrors := false
		for i, ref := range e.refs {
			if original.Status[i] == StatusReadError {
				e.report.Outcomes[ref.Slot] = OutcomeReadError
				hasReadErrors = true
			} else {
				e.report.Outcomes[ref.Slot] = OutcomeReadSuccessful
			}
		}

		if e.opts.ReadOnly {
			return e.report, nil
		}
		if hasReadErrors {
			// Writing over blocks whose original content is unknown
			// would be unrecoverable, so stop here.
			e.logger.Error("I/O errors encountered reading original blocks, aborting")
			return e.report, NewError("READ_ORIGINAL", ErrCodeOriginalReadAbort,
				"cannot overwrite blocks whose original content could not be read")
		}
	}

	e.logger.Info("writing blocks with random data", "blocks", len(e.refs))
	random := e.newBuffer()
	random.FillRandom(e.rng)
	e.report.WriteRandom = e.writePass(PhaseWriteRandom, random, func(i int) bool {
		return original != nil && original.Status[i] == StatusReadError
	})
	for i, ref := range e.refs {
		if random.Status[i] == StatusWriteError {
			e.report.Outcomes[ref.Slot] = OutcomeWriteError
		}
	}

	e.logger.Info("reading back written blocks", "blocks", len(e.refs))
	readBack := e.newBuffer()
	e.report.ReadBack = e.readPass(PhaseReadBack, readBack, func(i int) bool {
		if original != nil && original.Status[i] == StatusReadError {
			return true
		}
		return random.Status[i] == StatusWriteError
	})

	for i, ref := range e.refs {
		switch {
		case original != nil && original.Status[i] == StatusReadError:
			// Terminal since the read-original phase.
		case random.Status[i] == StatusWriteError:
			// Write failure dominates whatever a read-back would say.
		case readBack.Status[i] == StatusReadError:
			e.report.Outcomes[ref.Slot] = OutcomeReadError
		case bytes.Equal(readBack.Block(i), random.Block(i)):
			e.report.Outcomes[ref.Slot] = OutcomeValidated
		default:
			e.report.Outcomes[ref.Slot] = OutcomeNoStorage
		}
	}

	e.report.ValidatedBytes = e.validatedSize()

	if original != nil {
		e.logger.Info("restoring original blocks", "blocks", len(e.refs))
		e.report.Restore = e.writePass(PhaseRestore, original, func(i int) bool {
			return original.Status[i] == StatusReadError
		})
	}

	return e.report, nil
}

func (e *engine) newBuffer() *BlockBuffer {
	return NewBlockBuffer(int(e.opts.BlockSize), len(e.refs), e.dev.MemoryAlignment())
}

// readPass reads every planned block into buf, skipping indexes for which
// skip returns true. Failures are recorded in buf.Status and logged; they
// never stop the pass.
func (e *engine) readPass(phase Phase, buf *BlockBuffer, skip func(i int) bool) DurationStats {
	var stats DurationStats
	for i, ref := range e.refs {
		if skip != nil && skip(i) {
			e.progress(phase, i+1)
			continue
		}
		offset := ref.Number * e.opts.BlockSize
		elapsed, err := e.dev.Read(offset, buf.Block(i))
		e.observer.ObserveRead(uint64(e.opts.BlockSize), uint64(elapsed.Nanoseconds()), err == nil)
		if err != nil {
			buf.Status[i] = StatusReadError
			e.logger.Warn("read error",
				"phase", string(phase), "slot", ref.Slot, "offset", offset, "error", err)
		} else {
			stats.Add(elapsed)
		}
		e.progress(phase, i+1)
	}
	e.logPhase(phase, &stats)
	return stats
}

// writePass is the mirror image of readPass for writes.
func (e *engine) writePass(phase Phase, buf *BlockBuffer, skip func(i int) bool) DurationStats {
	var stats DurationStats
	for i, ref := range e.refs {
		if skip != nil && skip(i) {
			e.progress(phase, i+1)
			continue
		}
		offset := ref.Number * e.opts.BlockSize
		elapsed, err := e.dev.Write(offset, buf.Block(i))
		e.observer.ObserveWrite(uint64(e.opts.BlockSize), uint64(elapsed.Nanoseconds()), err == nil)
		if err != nil {
			if phase == PhaseRestore {
				// The outcome map is already final; the failure is only
				// reported.
				e.logger.Error("restore error, original content lost",
					"slot", ref.Slot, "offset", offset, "error", err)
			} else {
				buf.Status[i] = StatusWriteError
				e.logger.Warn("write error",
					"phase", string(phase), "slot", ref.Slot, "offset", offset, "error", err)
			}
		} else {
			stats.Add(elapsed)
		}
		e.progress(phase, i+1)
	}
	e.logPhase(phase, &stats)
	return stats
}

func (e *engine) progress(phase Phase, completed int) {
	if e.opts.Progress != nil {
		e.opts.Progress(phase, completed, len(e.refs))
	}
}

func (e *engine) logPhase(phase Phase, stats *DurationStats) {
	if stats.Count() == 0 {
		return
	}
	e.logger.Debug("phase finished",
		"phase", string(phase),
		"ops", stats.Count(),
		"avg_ms", millis(stats.Avg()),
		"min_ms", millis(stats.Min()),
		"max_ms", millis(stats.Max()),
		"cv", stats.CV())
}

// validatedSize derives the validated capacity: the end offset of the
// highest-numbered block inside the longest run of Validated slots
// starting at slot 0. A non-validated slot 0 validates nothing.
func (e *engine) validatedSize() int64 {
	highest := -1
	for i, o := range e.report.Outcomes {
		if o != OutcomeValidated {
			break
		}
		highest = i
	}
	if highest < 0 {
		return 0
	}
	for _, ref := range e.refs {
		if ref.Slot == highest {
			return (ref.Number + 1) * e.opts.BlockSize
		}
	}
	return 0
}
