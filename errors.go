package valixdrive

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Error is a structured valixdrive error carrying the failed operation,
// the device path and offset it applied to, and the underlying errno.
type Error struct {
	Op     string        // Operation that failed (e.g., "OPEN", "READ_BLOCK")
	Path   string        // Device path ("" if not applicable)
	Offset int64         // Byte offset on the device (-1 if not applicable)
	Code   ErrorCode     // High-level error category
	Errno  syscall.Errno // Kernel errno (0 if not applicable)
	Msg    string        // Human-readable message
	Inner  error         // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}

	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	if e.Offset >= 0 {
		parts = append(parts, fmt.Sprintf("offset=%d", e.Offset))
	}

	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", int(e.Errno)))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("valixdrive: %s (%s)", msg, strings.Join(parts, ", "))
	}

	return fmt.Sprintf("valixdrive: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is matches two structured errors by their category
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}

	return false
}

// ErrorCode represents high-level error categories
type ErrorCode string

const (
	ErrCodeOpen              ErrorCode = "cannot open device"
	ErrCodeIdentify          ErrorCode = "cannot identify device"
	ErrCodeSizeMismatch      ErrorCode = "device size mismatch"
	ErrCodeConfig            ErrorCode = "invalid configuration"
	ErrCodeIOError           ErrorCode = "I/O error"
	ErrCodeOriginalReadAbort ErrorCode = "original blocks unreadable"
	ErrCodeDeviceNotFound    ErrorCode = "device not found"
	ErrCodeDeviceBusy        ErrorCode = "device busy"
	ErrCodePermissionDenied  ErrorCode = "permission denied"
	ErrCodeUnsupported       ErrorCode = "platform not supported"
)

// Error constructors

// NewError creates a new structured error
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:     op,
		Offset: -1,
		Code:   code,
		Msg:    msg,
	}
}

// NewPathError creates a new structured error tied to a device path
func NewPathError(op, path string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:     op,
		Path:   path,
		Offset: -1,
		Code:   code,
		Msg:    msg,
	}
}

// NewIOError creates a per-block I/O error at a device offset
func NewIOError(op, path string, offset int64, inner error) *Error {
	err := WrapError(op, inner)
	err.Path = path
	err.Offset = offset
	return err
}

// WrapError wraps an existing error with valixdrive context
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	// If it's already a structured error, just update the operation
	if ve, ok := inner.(*Error); ok {
		return &Error{
			Op:     op,
			Path:   ve.Path,
			Offset: ve.Offset,
			Code:   ve.Code,
			Errno:  ve.Errno,
			Msg:    ve.Msg,
			Inner:  ve.Inner,
		}
	}

	// Surface the errno buried in os.PathError / os.SyscallError wrappers
	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{
			Op:     op,
			Offset: -1,
			Code:   mapErrnoToCode(errno),
			Errno:  errno,
			Msg:    inner.Error(),
			Inner:  inner,
		}
	}

	return &Error{
		Op:     op,
		Offset: -1,
		Code:   ErrCodeIOError,
		Msg:    inner.Error(),
		Inner:  inner,
	}
}

// mapErrnoToCode maps syscall errno to valixdrive error codes
func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.ENOENT, syscall.ENODEV, syscall.ENXIO:
		return ErrCodeDeviceNotFound
	case syscall.EBUSY:
		return ErrCodeDeviceBusy
	case syscall.EINVAL, syscall.E2BIG:
		return ErrCodeConfig
	case syscall.EPERM, syscall.EACCES:
		return ErrCodePermissionDenied
	default:
		return ErrCodeIOError
	}
}

// IsCode checks if an error matches a specific error code
func IsCode(err error, code ErrorCode) bool {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Code == code
	}
	return false
}

// IsErrno checks if an error matches a specific errno
func IsErrno(err error, errno syscall.Errno) bool {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Errno == errno
	}
	return false
}
