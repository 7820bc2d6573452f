// Package sysfs reads block-device identity metadata from the kernel's
// device-topology tree. All lookups tolerate missing entries: an absent
// attribute or symlink is never an error, only unreadable ones are.
package sysfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// rootMarker is the base name that terminates upward walks. Canonical
// sysfs paths all descend from a directory literally named "sys".
const rootMarker = "sys"

// FS roots all lookups at a configurable directory so tests can point it
// at a synthetic tree.
type FS struct {
	Root string
}

// Default reads the real tree at /sys.
var Default = FS{Root: "/sys"}

// BlockDevicePath returns the metadata directory for a block device with
// the given major and minor numbers.
func (f FS) BlockDevicePath(major, minor uint32) string {
	return filepath.Join(f.Root, "dev", "block", fmt.Sprintf("%d:%d", major, minor))
}

// ReadAttr reads a sysfs attribute file and trims surrounding whitespace.
// A missing or unreadable file yields the empty string.
func ReadAttr(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// attrExists reports whether a sysfs entry is present, following symlinks.
func attrExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// readLink resolves a symlink and returns the base name of its target.
// Returns ok=false when the link is absent; any other failure is an error.
func readLink(path string) (base string, ok bool, err error) {
	target, err := os.Readlink(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading symlink %s: %w", path, err)
	}
	return filepath.Base(target), true, nil
}

// walkUp canonicalizes start and applies visit to each directory from
// there up to (but excluding) the sysfs root. The walk stops early when
// visit asks to, when the root marker is reached, or at the filesystem
// root.
func walkUp(start string, visit func(dir string) (stop bool, err error)) error {
	dir, err := filepath.EvalSymlinks(start)
	if err != nil {
		return fmt.Errorf("canonicalizing %s: %w", start, err)
	}
	for filepath.Base(dir) != rootMarker {
		stop, err := visit(dir)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
	return nil
}

// Subsystems returns the kernel subsystem chain for a device metadata
// directory, outermost first. Consecutive duplicates are collapsed, so a
// chain like scsi/scsi/usb/usb/pci comes back as [scsi usb pci].
func Subsystems(devicePath string) ([]string, error) {
	var subsystems []string
	err := walkUp(devicePath, func(dir string) (bool, error) {
		name, ok, err := readLink(filepath.Join(dir, "subsystem"))
		if err != nil {
			return false, err
		}
		if ok && (len(subsystems) == 0 || subsystems[len(subsystems)-1] != name) {
			subsystems = append(subsystems, name)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return subsystems, nil
}

// USBDescriptor holds the attribute files read from the USB device
// directory a drive is attached through. Missing attributes are empty.
type USBDescriptor struct {
	Driver       string
	VendorID     string
	ProductID    string
	Manufacturer string
	Product      string
	SerialNumber string
	Version      string
	Speed        string
}

// DiscoverUSB walks from a device metadata directory toward the sysfs
// root looking for the level bound to the "uas" or "usb-storage" driver
// inside the usb subsystem. The parent of that level is the USB device
// directory holding the descriptor files. Returns nil when the walk finds
// no such level.
func DiscoverUSB(devicePath string) (*USBDescriptor, error) {
	var desc *USBDescriptor
	err := walkUp(devicePath, func(dir string) (bool, error) {
		subsystem, ok, err := readLink(filepath.Join(dir, "subsystem"))
		if err != nil {
			return false, err
		}
		if !ok || subsystem != "usb" {
			return false, nil
		}
		driver, ok, err := readLink(filepath.Join(dir, "driver"))
		if err != nil {
			return false, err
		}
		if !ok || (driver != "uas" && driver != "usb-storage") {
			return false, nil
		}
		parent := filepath.Dir(dir)
		if !attrExists(filepath.Join(parent, "idVendor")) {
			return false, nil
		}
		desc = &USBDescriptor{
			Driver:       driver,
			VendorID:     ReadAttr(filepath.Join(parent, "idVendor")),
			ProductID:    ReadAttr(filepath.Join(parent, "idProduct")),
			Manufacturer: ReadAttr(filepath.Join(parent, "manufacturer")),
			Product:      ReadAttr(filepath.Join(parent, "product")),
			SerialNumber: ReadAttr(filepath.Join(parent, "serial")),
			Version:      ReadAttr(filepath.Join(parent, "version")),
			Speed:        ReadAttr(filepath.Join(parent, "speed")),
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return desc, nil
}
