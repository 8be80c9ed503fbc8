/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Core data model: device descriptors, handshake results, panel
 * profiles and in-flight frame jobs
 */

package main

import "fmt"

// PixelTransport names the wire transport used to carry pixel data
// to a device.
type PixelTransport int

// The four supported pixel transports.
const (
	TransportScsi PixelTransport = iota
	TransportHid
	TransportBulk
	TransportLedHid
)

// String returns the textual name of a PixelTransport, as used in
// quirks files, logs and the capability-probe API.
func (t PixelTransport) String() string {
	switch t {
	case TransportScsi:
		return "scsi"
	case TransportHid:
		return "hid"
	case TransportBulk:
		return "bulk"
	case TransportLedHid:
		return "led_hid"
	}

	return fmt.Sprintf("unknown (%d)", int(t))
}

// PixelFormat names the on-wire encoding of a frame's pixel payload.
type PixelFormat int

// The four supported pixel formats.
const (
	PixelFormatRGB565BE PixelFormat = iota
	PixelFormatRGB565LE
	PixelFormatJPEG
	PixelFormatLedSegments
)

// String returns the textual name of a PixelFormat.
func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGB565BE:
		return "rgb565-be"
	case PixelFormatRGB565LE:
		return "rgb565-le"
	case PixelFormatJPEG:
		return "jpeg"
	case PixelFormatLedSegments:
		return "led-segments"
	}

	return fmt.Sprintf("unknown (%d)", int(f))
}

// ImplementationKey selects which L3 protocol handler drives a device.
type ImplementationKey int

// The enumerated protocol implementations.
const (
	ImplScsiLCD ImplementationKey = iota
	ImplHidLCD
	ImplBulkLCD
	ImplLedHID
)

// DeviceDescriptor is what discovery (L1) emits: a stable, copyable
// identification of one physically-attached device.
type DeviceDescriptor struct {
	Vid                 uint16            // USB Vendor ID
	Pid                 uint16            // USB Product ID
	BusPath             string            // Opaque, stable physical-port path
	VendorName          string            // Human-readable vendor name
	ProductName         string            // Human-readable product name
	ImplementationKey   ImplementationKey // Selects protocol + framing rules
	PixelTransport      PixelTransport    // Wire transport family
	DeviceFamilyID      int               // 1..4
	ScsiPassThroughNode string            // OS path, SCSI family only; "" if absent
}

// Key returns the canonical, lowercase hex+path sender-cache key for
// this descriptor: "vvvv:pppp@bus_path".
func (d DeviceDescriptor) Key() string {
	return fmt.Sprintf("%04x:%04x@%s", d.Vid, d.Pid, d.BusPath)
}

func (d DeviceDescriptor) String() string {
	return fmt.Sprintf("%s (%s %s, %s via %s)",
		d.Key(), d.VendorName, d.ProductName,
		d.ImplementationKey, d.PixelTransport)
}

// String renders an ImplementationKey for logging.
func (k ImplementationKey) String() string {
	switch k {
	case ImplScsiLCD:
		return "scsi-lcd"
	case ImplHidLCD:
		return "hid-lcd"
	case ImplBulkLCD:
		return "bulk-lcd"
	case ImplLedHID:
		return "led-hid"
	}

	return fmt.Sprintf("unknown (%d)", int(k))
}

// Resolution is a (width, height) pair, in pixels.
type Resolution struct {
	Width, Height int
}

// HandshakeResult is what a successful protocol handshake (L3) yields.
type HandshakeResult struct {
	Resolution  Resolution  // Zero value means "not determined"
	HasResolution bool      // True if Resolution was determined
	ModelID     uint32      // PM byte, SUB-refined, or family id
	Serial      string      // Device-reported serial string
	RawResponse []byte      // Raw handshake response, kept for diagnostics

	SubType    uint32         // Protocol-specific: SUB byte
	PixelFormat PixelFormat   // Protocol-specific: negotiated pixel format
	UseJPEG    bool           // Protocol-specific: frame should be JPEG-encoded
	LedStyle   *LedDeviceStyle // Protocol-specific: non-nil for LED_HID devices
}

// ChunkSegment is one (command, length) pair of a ChunkPlan.
type ChunkSegment struct {
	Cmd    uint32 // Wire command word for this segment (SCSI) or index (others)
	Length int    // Byte length of this segment
}

// ChunkPlan is an ordered list of segments that must exactly partition
// one frame's bytes.
type ChunkPlan []ChunkSegment

// TotalLength returns the sum of all segment lengths in the plan.
func (plan ChunkPlan) TotalLength() int {
	total := 0
	for _, seg := range plan {
		total += seg.Length
	}
	return total
}

// PanelProfile is derived from a handshake and describes how frames
// must be encoded and chunked for a particular device. ModelID and
// Serial are carried so a StateStore-cached profile can be checked
// against a fresh handshake's identity before being trusted.
type PanelProfile struct {
	Width, Height int
	PixelFormat   PixelFormat
	BytesPerPixel int
	ChunkPlan     ChunkPlan
	ModelID       uint32
	Serial        string
}

// BytesPerFrame returns width*height*bytes_per_pixel, the invariant
// that ChunkPlan.TotalLength() must equal for raster formats.
func (p PanelProfile) BytesPerFrame() int {
	return p.Width * p.Height * p.BytesPerPixel
}

// LedDeviceStyle describes one of the enumerated cooler LED form
// factors: a fixed LED count, a segment layout, and a display name.
type LedDeviceStyle struct {
	Name         string // Display / model name
	TotalLEDs    int    // Total number of addressable LEDs
	SegmentSizes []int  // Per-segment LED counts; sums to TotalLEDs
}

// FrameJob is the in-flight unit passed from L5 (pixel encoding) down
// to L2 (transport). It is constructed per caller frame, consumed
// exactly once by the protocol handler, and never retained afterward.
type FrameJob struct {
	Bytes       []byte
	Width       int
	Height      int
	PixelFormat PixelFormat
}
