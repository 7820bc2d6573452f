//go:build !linux

package valixdrive

// Open is only implemented for Linux block devices.
func Open(path string, readOnly bool) (Device, error) {
	return nil, NewPathError("OPEN", path, ErrCodeUnsupported,
		"device access is only implemented on Linux")
}
