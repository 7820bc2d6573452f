package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/cavedon/valixdrive"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	blue   = color.New(color.FgBlue)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

// printIfNotEmpty prints "label: value" when value is non-empty.
func printIfNotEmpty(label, value string) {
	if value != "" {
		fmt.Printf("%s: %s\n", label, value)
	}
}

func printDeviceInfo(info *valixdrive.DeviceInfo) {
	printIfNotEmpty("Vendor", info.Vendor)
	printIfNotEmpty("Model", info.Model)
	printIfNotEmpty("Serial number", info.Serial)
	printIfNotEmpty("Revision", info.Revision)
	printIfNotEmpty("Firmware revision", info.FirmwareRevision)
	fmt.Printf("Device size: %s\n", formatBytes(info.Size))
	if info.IsBlockDevice {
		fmt.Printf("Block size (physical/logical): %d/%d bytes\n",
			info.PhysicalBlockSize, info.LogicalBlockSize)
	}
	if len(info.Subsystems) > 0 {
		fmt.Print("Subsystems: ")
		for i, s := range info.Subsystems {
			if i > 0 {
				fmt.Print(", ")
			}
			fmt.Print(s)
		}
		fmt.Println()
	}
	if usb := info.USB; usb != nil {
		printIfNotEmpty("USB driver", usb.Driver)
		if usb.VendorID != "" || usb.ProductID != "" {
			fmt.Printf("USB vendor/product ID: %s:%s\n", usb.VendorID, usb.ProductID)
		}
		printIfNotEmpty("USB manufacturer", usb.Manufacturer)
		printIfNotEmpty("USB product", usb.Product)
		printIfNotEmpty("USB serial number", usb.SerialNumber)
		if usb.Version != "" || usb.Speed != "" {
			fmt.Printf("USB version (speed): %s (%s Mbps)\n", usb.Version, usb.Speed)
		}
	}
}

// glyph returns the colored map symbol for one outcome.
func glyph(o valixdrive.Outcome) string {
	switch o {
	case valixdrive.OutcomeValidated:
		return green.Sprint("◼")
	case valixdrive.OutcomeReadError:
		return blue.Sprint("R")
	case valixdrive.OutcomeReadSuccessful:
		return green.Sprint("R")
	case valixdrive.OutcomeWriteError:
		return yellow.Sprint("W")
	case valixdrive.OutcomeNoStorage:
		return red.Sprint("✖")
	default:
		// The map should never contain an unknown slot.
		return "?"
	}
}

func printValidationMap(outcomes []valixdrive.Outcome, width int) {
	bold.Println("\nValidation map:")
	for i, o := range outcomes {
		fmt.Print(glyph(o))
		if i%width == width-1 {
			fmt.Println()
		}
	}
	if len(outcomes)%width != 0 {
		fmt.Println()
	}
	fmt.Printf("Legend: %s Validated   %s Read Error       %s Write Error\n",
		green.Sprint("◼"), blue.Sprint("R"), yellow.Sprint("W"))
	fmt.Printf("        %s No storage  %s Read Successful\n",
		red.Sprint("✖"), green.Sprint("R"))
}

func printPhaseStats(report *valixdrive.Report) {
	printStats("Reading original blocks", &report.ReadOriginal)
	printStats("Writing random blocks", &report.WriteRandom)
	printStats("Reading back written blocks", &report.ReadBack)
	printStats("Restoring original blocks", &report.Restore)
}

func printStats(label string, s *valixdrive.DurationStats) {
	if s.Count() == 0 {
		return
	}
	bold.Printf("\n%s:\n", label)
	fmt.Printf("avg: %.3f ms, stddev: %.3f ms, CV: %.3f\n",
		asMillis(s.Avg()), s.StdDev(), s.CV())
	fmt.Printf("min: %.3f ms, max: %.3f ms\n", asMillis(s.Min()), asMillis(s.Max()))
}

func printValidatedSize(n int64) {
	fmt.Printf("%s: %s\n", bold.Sprint("Validated drive size"), formatBytes(n))
}

func formatBytes(n int64) string {
	return fmt.Sprintf("%d bytes (%.3f GiB, %.3f GB)",
		n,
		float64(n)/1024.0/1024.0/1024.0,
		float64(n)/1_000_000_000.0)
}

func asMillis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
