package sysfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTree builds a synthetic sysfs layout for a USB-attached SCSI disk:
//
//	sys/devices/pci0000:00/usb1/1-4/1-4:1.0/host2/target2:0:0/2:0:0:0/block/sdb
//
// with subsystem and driver symlinks at the levels the kernel places them.
// Returns the sys root and the device directory.
func fakeTree(t *testing.T) (sysRoot, devDir string) {
	t.Helper()
	root := t.TempDir()
	sysRoot = filepath.Join(root, "sys")

	devDir = filepath.Join(sysRoot, "devices", "pci0000:00", "usb1",
		"1-4", "1-4:1.0", "host2", "target2:0:0", "2:0:0:0", "block", "sdb")
	require.NoError(t, os.MkdirAll(devDir, 0o755))

	for _, class := range []string{"block", "scsi", "usb", "pci"} {
		require.NoError(t, os.MkdirAll(filepath.Join(sysRoot, "bus", class), 0o755))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(sysRoot, "bus", "usb", "drivers", "uas"), 0o755))

	link := func(dir, name, class string) {
		t.Helper()
		require.NoError(t, os.Symlink(
			filepath.Join(sysRoot, "bus", class),
			filepath.Join(dir, name)))
	}

	up := func(dir string, n int) string {
		for ; n > 0; n-- {
			dir = filepath.Dir(dir)
		}
		return dir
	}

	link(devDir, "subsystem", "block")
	link(up(devDir, 2), "subsystem", "scsi") // 2:0:0:0
	iface := up(devDir, 5)                   // 1-4:1.0
	link(iface, "subsystem", "usb")
	require.NoError(t, os.Symlink(
		filepath.Join(sysRoot, "bus", "usb", "drivers", "uas"),
		filepath.Join(iface, "driver")))
	usbDev := up(devDir, 6) // 1-4
	link(usbDev, "subsystem", "usb")
	link(up(devDir, 7), "subsystem", "usb") // usb1
	link(up(devDir, 8), "subsystem", "pci") // pci0000:00

	attrs := map[string]string{
		"idVendor":     "0951\n",
		"idProduct":    "1666\n",
		"manufacturer": "Kingston\n",
		"product":      "DataTraveler 3.0\n",
		"serial":       "0123456789AB\n",
		"version":      " 3.20\n",
		"speed":        "5000\n",
	}
	for name, value := range attrs {
		require.NoError(t, os.WriteFile(filepath.Join(usbDev, name), []byte(value), 0o644))
	}

	return sysRoot, devDir
}

func TestReadAttr(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor"), []byte("  SanDisk \n"), 0o644))

	assert.Equal(t, "SanDisk", ReadAttr(filepath.Join(dir, "vendor")))
	assert.Equal(t, "", ReadAttr(filepath.Join(dir, "missing")))
}

func TestBlockDevicePath(t *testing.T) {
	fs := FS{Root: "/sys"}
	assert.Equal(t, "/sys/dev/block/8:16", fs.BlockDevicePath(8, 16))
}

func TestSubsystems(t *testing.T) {
	_, devDir := fakeTree(t)

	subsystems, err := Subsystems(devDir)
	require.NoError(t, err)

	// Consecutive usb levels collapse into one entry.
	assert.Equal(t, []string{"block", "scsi", "usb", "pci"}, subsystems)
}

func TestSubsystemsThroughDevLink(t *testing.T) {
	// The entry point in production is the /sys/dev/block/MAJ:MIN
	// symlink, which has to be canonicalized before walking up.
	sysRoot, devDir := fakeTree(t)
	byDevNo := filepath.Join(sysRoot, "dev", "block")
	require.NoError(t, os.MkdirAll(byDevNo, 0o755))
	require.NoError(t, os.Symlink(devDir, filepath.Join(byDevNo, "8:16")))

	subsystems, err := Subsystems(filepath.Join(byDevNo, "8:16"))
	require.NoError(t, err)
	assert.Equal(t, []string{"block", "scsi", "usb", "pci"}, subsystems)
}

func TestSubsystemsMissingDevice(t *testing.T) {
	_, err := Subsystems(filepath.Join(t.TempDir(), "sys", "nope"))
	assert.Error(t, err)
}

func TestDiscoverUSB(t *testing.T) {
	_, devDir := fakeTree(t)

	desc, err := DiscoverUSB(devDir)
	require.NoError(t, err)
	require.NotNil(t, desc)

	assert.Equal(t, "uas", desc.Driver)
	assert.Equal(t, "0951", desc.VendorID)
	assert.Equal(t, "1666", desc.ProductID)
	assert.Equal(t, "Kingston", desc.Manufacturer)
	assert.Equal(t, "DataTraveler 3.0", desc.Product)
	assert.Equal(t, "0123456789AB", desc.SerialNumber)
	assert.Equal(t, "3.20", desc.Version)
	assert.Equal(t, "5000", desc.Speed)
}

func TestDiscoverUSBNonUSBDevice(t *testing.T) {
	// A SATA-style tree with no usb level anywhere.
	root := t.TempDir()
	sysRoot := filepath.Join(root, "sys")
	devDir := filepath.Join(sysRoot, "devices", "pci0000:00", "ata1",
		"host1", "target1:0:0", "1:0:0:0", "block", "sda")
	require.NoError(t, os.MkdirAll(devDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(sysRoot, "bus", "scsi"), 0o755))
	require.NoError(t, os.Symlink(
		filepath.Join(sysRoot, "bus", "scsi"),
		filepath.Join(filepath.Dir(filepath.Dir(devDir)), "subsystem")))

	desc, err := DiscoverUSB(devDir)
	require.NoError(t, err)
	assert.Nil(t, desc)
}

func TestDiscoverUSBIgnoresUnrelatedDrivers(t *testing.T) {
	// A usb level whose driver is not a storage driver must not stop the
	// walk; with no storage driver above it, discovery comes up empty.
	sysRoot, devDir := fakeTree(t)
	iface := devDir
	for i := 0; i < 5; i++ {
		iface = filepath.Dir(iface)
	}
	require.NoError(t, os.Remove(filepath.Join(iface, "driver")))
	require.NoError(t, os.MkdirAll(filepath.Join(sysRoot, "bus", "usb", "drivers", "hub"), 0o755))
	require.NoError(t, os.Symlink(
		filepath.Join(sysRoot, "bus", "usb", "drivers", "hub"),
		filepath.Join(iface, "driver")))

	desc, err := DiscoverUSB(devDir)
	require.NoError(t, err)
	assert.Nil(t, desc)
}
