/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Static device registry and USB topology scanner (L1)
 */

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/gousb"
)

// registryEntry is one row of the static (vid,pid) → implementation table.
type registryEntry struct {
	VendorName         string
	ProductName        string
	ImplementationKey  ImplementationKey
	PixelTransport     PixelTransport
	DeviceFamilyID     int
	ButtonImageAsset   string
}

// KnownDevices is the static registry mapping (vid,pid) pairs to their
// protocol implementation and transport. This table is process-wide
// immutable data; every pair here must keep working across rewrites.
var KnownDevices = map[[2]uint16]registryEntry{
	{0x87CD, 0x70DB}: {
		VendorName: "Thermalright", ProductName: "Frozen Warframe 360 LCD",
		ImplementationKey: ImplScsiLCD, PixelTransport: TransportScsi,
		DeviceFamilyID: 1, ButtonImageAsset: "thermalright-lcd.png",
	},
	{0x0416, 0x5406}: {
		VendorName: "Winbond", ProductName: "ALi LCD Cooler (SCSI)",
		ImplementationKey: ImplScsiLCD, PixelTransport: TransportScsi,
		DeviceFamilyID: 1,
	},
	{0x0402, 0x3922}: {
		VendorName: "ALi Corp", ProductName: "ALi LCD Cooler (SCSI)",
		ImplementationKey: ImplScsiLCD, PixelTransport: TransportScsi,
		DeviceFamilyID: 1,
	},
	{0x0416, 0x530A}: {
		VendorName: "Winbond", ProductName: "ALi LCD Cooler (HID)",
		ImplementationKey: ImplHidLCD, PixelTransport: TransportHid,
		DeviceFamilyID: 2,
	},
	{0x0416, 0x53E6}: {
		VendorName: "Winbond", ProductName: "ALi LCD Cooler (HID, rev2)",
		ImplementationKey: ImplHidLCD, PixelTransport: TransportHid,
		DeviceFamilyID: 2,
	},
	{0x87AD, 0x70DB}: {
		VendorName: "Thermalright", ProductName: "Frozen Vision Bulk LCD",
		ImplementationKey: ImplBulkLCD, PixelTransport: TransportBulk,
		DeviceFamilyID: 3,
	},
	{0x0416, 0x8001}: {
		VendorName: "Winbond", ProductName: "ALi ARGB Controller",
		ImplementationKey: ImplLedHID, PixelTransport: TransportLedHid,
		DeviceFamilyID: 4,
	},
}

// usbCtx is the process-wide gousb context, used by every L2 transport
// that talks directly to libusb.
var usbCtx *gousb.Context

// UsbInit initializes the process-wide USB context. Must be called
// once, before the first discover() or transport open.
func UsbInit() {
	usbCtx = gousb.NewContext()
}

// UsbClose releases the process-wide USB context.
func UsbClose() {
	if usbCtx != nil {
		usbCtx.Close()
		usbCtx = nil
	}
}

// discover enumerates all USB devices on the host and returns the
// DeviceDescriptor for each one matched against KnownDevices. Unknown
// (vid,pid) pairs are discarded. Any per-device error is logged and
// the device is skipped; discover() never fails as a whole.
func discover() []DeviceDescriptor {
	var out []DeviceDescriptor

	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return true
	})

	if err != nil {
		Log.Error('!', "discover: %s", err)
	}

	for _, dev := range devs {
		desc := dev.Desc
		vid, pid := uint16(desc.Vendor), uint16(desc.Product)

		entry, known := KnownDevices[[2]uint16{vid, pid}]
		dev.Close()

		if !known {
			continue
		}

		busPath := usbBusPath(desc.Bus, desc.Address, desc.Path)

		d := DeviceDescriptor{
			Vid:                vid,
			Pid:                pid,
			BusPath:            busPath,
			VendorName:         entry.VendorName,
			ProductName:        entry.ProductName,
			ImplementationKey:  entry.ImplementationKey,
			PixelTransport:     entry.PixelTransport,
			DeviceFamilyID:     entry.DeviceFamilyID,
		}

		if d.PixelTransport == TransportScsi {
			if node, ok := findScsiPassThroughNode(vid, pid, busPath); ok {
				d.ScsiPassThroughNode = node
			}
		}

		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].BusPath != out[j].BusPath {
			return out[i].BusPath < out[j].BusPath
		}
		if out[i].Vid != out[j].Vid {
			return out[i].Vid < out[j].Vid
		}
		return out[i].Pid < out[j].Pid
	})

	return out
}

// usbBusPath renders a stable, opaque physical-port identifier from
// the bus number, device address and port-number chain gousb reports.
func usbBusPath(bus, address int, path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = fmt.Sprintf("%d", p)
	}

	if len(parts) == 0 {
		return fmt.Sprintf("usb-%d-%d", bus, address)
	}

	return fmt.Sprintf("usb-%d-%s", bus, strings.Join(parts, "."))
}

// findScsiPassThroughNode attempts to locate the OS-level raw-SCSI
// generic device node (/dev/sgN) associated with the USB device at
// the given bus path, by resolving each /sys/class/scsi_generic entry
// and looking for that USB device's sysfs directory in its path. Not
// found is not an error: the descriptor is still emitted with an empty
// node, per spec.
func findScsiPassThroughNode(vid, pid uint16, busPath string) (string, bool) {
	const sysClassScsiGeneric = "/sys/class/scsi_generic"

	entries, err := os.ReadDir(sysClassScsiGeneric)
	if err != nil {
		return "", false
	}

	// busPath "usb-<bus>-<ports>" names the sysfs USB device
	// directory "<bus>-<ports>".
	wantDir := "/" + strings.TrimPrefix(busPath, "usb-") + "/"

	for _, entry := range entries {
		linkPath, err := filepath.EvalSymlinks(
			filepath.Join(sysClassScsiGeneric, entry.Name()))
		if err != nil {
			continue
		}

		if strings.Contains(linkPath, wantDir) {
			return filepath.Join("/dev", entry.Name()), true
		}
	}

	return "", false
}
