//go:build linux

package valixdrive

import (
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cavedon/valixdrive/internal/logging"
	"github.com/cavedon/valixdrive/internal/sysfs"
)

// linuxDevice implements Device on top of a block-special file opened for
// direct, synchronous I/O.
type linuxDevice struct {
	path  string
	f     *os.File
	size  int64
	align int
	sys   sysfs.FS

	// info is populated at most once by Identify.
	info *DeviceInfo
}

// Open opens the storage device at path for unbuffered, synchronous
// access. Read-write mode requests exclusive access so concurrent testing
// tools cannot interleave; read-only mode does not.
func Open(path string, readOnly bool) (Device, error) {
	flag := os.O_RDONLY
	if !readOnly {
		flag = os.O_RDWR | unix.O_EXCL
	}
	flag |= unix.O_DIRECT | unix.O_SYNC

	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		oerr := WrapError("OPEN", err)
		oerr.Path = path
		if oerr.Code == ErrCodeIOError {
			oerr.Code = ErrCodeOpen
		}
		return nil, oerr
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		serr := WrapError("OPEN", err)
		serr.Path = path
		serr.Msg = "seeking to end of device: " + serr.Msg
		return nil, serr
	}

	return &linuxDevice{
		path: path,
		f:    f,
		size: size,
		sys:  sysfs.Default,
	}, nil
}

func (d *linuxDevice) Size() int64 {
	return d.size
}

func (d *linuxDevice) MemoryAlignment() int {
	return d.align
}

func (d *linuxDevice) Close() error {
	return d.f.Close()
}

func (d *linuxDevice) Read(offset int64, p []byte) (time.Duration, error) {
	start := time.Now()
	_, err := d.f.ReadAt(p, offset)
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, NewIOError("READ_BLOCK", d.path, offset, err)
	}
	return elapsed, nil
}

func (d *linuxDevice) Write(offset int64, p []byte) (time.Duration, error) {
	start := time.Now()
	_, err := d.f.WriteAt(p, offset)
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, NewIOError("WRITE_BLOCK", d.path, offset, err)
	}
	return elapsed, nil
}

func (d *linuxDevice) Identify() (*DeviceInfo, error) {
	if d.info != nil {
		return d.info, nil
	}

	info, align, err := d.discover()
	if err != nil {
		return nil, err
	}

	d.info = info
	d.align = align
	return d.info, nil
}

// discover reads geometry through block-device ioctls and identity
// attributes from sysfs. A path that is not a block-special file degrades
// to a size-only DeviceInfo with a logged warning; that is not an error.
func (d *linuxDevice) discover() (*DeviceInfo, int, error) {
	info := &DeviceInfo{Size: d.size}

	var st unix.Stat_t
	if err := unix.Fstat(int(d.f.Fd()), &st); err != nil {
		ierr := WrapError("IDENTIFY", err)
		ierr.Path = d.path
		ierr.Code = ErrCodeIdentify
		return nil, 0, ierr
	}
	if st.Mode&unix.S_IFMT != unix.S_IFBLK {
		logging.Default().Warn("not a block device, identity and alignment unavailable",
			"path", d.path)
		return info, 0, nil
	}
	info.IsBlockDevice = true

	logical, err := unix.IoctlGetUint32(int(d.f.Fd()), unix.BLKSSZGET)
	if err != nil {
		return nil, 0, d.identifyError("reading logical block size", err)
	}
	physical, err := unix.IoctlGetUint32(int(d.f.Fd()), unix.BLKPBSZGET)
	if err != nil {
		return nil, 0, d.identifyError("reading physical block size", err)
	}
	info.LogicalBlockSize = int64(logical)
	info.PhysicalBlockSize = int64(physical)

	// O_DIRECT requires buffers and offsets aligned to the sector size.
	// The larger of the two block sizes is safe for both.
	align := int(max(info.LogicalBlockSize, info.PhysicalBlockSize))

	ioctlSize, err := unix.IoctlGetInt(int(d.f.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		return nil, 0, d.identifyError("reading device size", err)
	}
	if int64(ioctlSize) != d.size {
		// Safeguard check, it should never trip. A disagreement means the
		// access layer itself is broken, so stop before any destructive I/O.
		return nil, 0, &Error{
			Op:     "IDENTIFY",
			Path:   d.path,
			Offset: -1,
			Code:   ErrCodeSizeMismatch,
			Msg: "block device size does not match the size reported by " +
				"seeking to the end of the device",
		}
	}

	sysPath := d.sys.BlockDevicePath(unix.Major(uint64(st.Rdev)), unix.Minor(uint64(st.Rdev)))
	info.Vendor = sysfs.ReadAttr(sysPath + "/device/vendor")
	info.Model = sysfs.ReadAttr(sysPath + "/device/model")
	info.Serial = sysfs.ReadAttr(sysPath + "/device/serial")
	info.Revision = sysfs.ReadAttr(sysPath + "/device/rev")
	info.FirmwareRevision = sysfs.ReadAttr(sysPath + "/device/firmware_rev")

	subsystems, err := sysfs.Subsystems(sysPath)
	if err != nil {
		return nil, 0, d.identifyError("walking subsystem chain", err)
	}
	info.Subsystems = subsystems

	if contains(subsystems, "usb") {
		desc, err := sysfs.DiscoverUSB(sysPath)
		if err != nil {
			return nil, 0, d.identifyError("discovering USB descriptor", err)
		}
		if desc != nil {
			info.USB = &USBInfo{
				Driver:       desc.Driver,
				VendorID:     desc.VendorID,
				ProductID:    desc.ProductID,
				Manufacturer: desc.Manufacturer,
				Product:      desc.Product,
				SerialNumber: desc.SerialNumber,
				Version:      desc.Version,
				Speed:        desc.Speed,
			}
		}
	}

	return info, align, nil
}

func (d *linuxDevice) identifyError(what string, err error) *Error {
	ierr := WrapError("IDENTIFY", err)
	ierr.Path = d.path
	ierr.Code = ErrCodeIdentify
	ierr.Msg = what + ": " + ierr.Msg
	return ierr
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
