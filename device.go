// Package valixdrive detects storage media that misreport their capacity.
// It spot-checks a sparse set of blocks spanning the advertised address
// space: each sampled block is read, overwritten with random data, read
// back, compared, and restored. A counterfeit device shows up as blocks
// that accept writes without error but read back different bytes.
package valixdrive

import "time"

// Device is the access layer for a storage device under test. There is one
// concrete implementation per target OS; everything above it depends only
// on this interface.
type Device interface {
	// Size returns the total addressable size of the device in bytes,
	// determined once at open time.
	Size() int64

	// Identify discovers hardware and geometry metadata. The first call
	// performs discovery and caches the result; subsequent calls return
	// the cached value.
	Identify() (*DeviceInfo, error)

	// Read reads exactly len(p) bytes starting at offset. The offset and
	// the buffer's length and base address must satisfy MemoryAlignment.
	// Returns the wall-clock time spent reading.
	Read(offset int64, p []byte) (time.Duration, error)

	// Write writes exactly len(p) bytes starting at offset, with the same
	// alignment constraints as Read. Returns the wall-clock time spent
	// writing.
	Write(offset int64, p []byte) (time.Duration, error)

	// MemoryAlignment returns the byte boundary buffer addresses and I/O
	// offsets must be aligned to for direct I/O, or 0 if the device
	// imposes no constraint. The constraint is part of the geometry
	// discovered by Identify, so call Identify before relying on it.
	MemoryAlignment() int

	// Close releases the underlying OS resource.
	Close() error
}

// DeviceInfo is an immutable snapshot of device identity and geometry.
// Fields are empty or zero when not applicable (regular files, non-USB
// transports).
type DeviceInfo struct {
	Vendor           string
	Model            string
	Serial           string
	Revision         string
	FirmwareRevision string

	// Size is the total size in bytes as reported at open time.
	Size int64

	// IsBlockDevice reports whether the path named a block-special file.
	IsBlockDevice     bool
	LogicalBlockSize  int64
	PhysicalBlockSize int64

	// Subsystems lists the kernel subsystem chain from the device up to
	// the sysfs root, outermost first (e.g. ["scsi", "usb", "pci"]).
	Subsystems []string

	// USB holds USB descriptor fields, or nil when the device is not
	// attached over USB storage.
	USB *USBInfo
}

// USBInfo holds the descriptor fields of the USB device a drive is
// attached through.
type USBInfo struct {
	Driver       string // "uas" or "usb-storage"
	VendorID     string
	ProductID    string
	Manufacturer string
	Product      string
	SerialNumber string
	Version      string
	Speed        string
}
