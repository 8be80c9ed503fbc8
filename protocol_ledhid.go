/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * LED HID protocol handler (L3): handshake resolves a LedDeviceStyle,
 * send_frame packs a per-segment colour vector into fixed-length HID
 * reports.
 */

package main

import "fmt"

// ledStyles is the LED_STYLES table (spec.md §3): 12 enumerated cooler
// ARGB form factors, each a fixed LED count split into addressable
// segments (fan ring, pump-cap halo, and combinations thereof).
var ledStyles = []LedDeviceStyle{
	{Name: "single-ring-12", TotalLEDs: 12, SegmentSizes: []int{12}},
	{Name: "single-ring-16", TotalLEDs: 16, SegmentSizes: []int{16}},
	{Name: "single-ring-24", TotalLEDs: 24, SegmentSizes: []int{24}},
	{Name: "dual-ring-12x2", TotalLEDs: 24, SegmentSizes: []int{12, 12}},
	{Name: "dual-ring-16x2", TotalLEDs: 32, SegmentSizes: []int{16, 16}},
	{Name: "fan-3x12", TotalLEDs: 36, SegmentSizes: []int{12, 12, 12}},
	{Name: "fan-3x16", TotalLEDs: 48, SegmentSizes: []int{16, 16, 16}},
	{Name: "fan-4x12", TotalLEDs: 48, SegmentSizes: []int{12, 12, 12, 12}},
	{Name: "fan-4x16", TotalLEDs: 64, SegmentSizes: []int{16, 16, 16, 16}},
	{Name: "pump-cap-halo", TotalLEDs: 20, SegmentSizes: []int{20}},
	{Name: "pump-cap-and-fan", TotalLEDs: 44, SegmentSizes: []int{20, 12, 12}},
	{Name: "hr10-7segment", TotalLEDs: 35, SegmentSizes: []int{5, 5, 5, 5, 5, 5, 5}},
}

// ledStyleByName looks up a style by its display name; used to honour
// a "model" quirk override.
func ledStyleByName(name string) (LedDeviceStyle, bool) {
	for _, s := range ledStyles {
		if s.Name == name {
			return s, true
		}
	}
	return LedDeviceStyle{}, false
}

// ledStyleDefault picks a deterministic default style for a device
// family when no quirk narrows the choice further.
func ledStyleDefault(familyID int) LedDeviceStyle {
	return ledStyles[familyID%len(ledStyles)]
}

// ledHidProtocol implements Protocol for the LED HID family. Because
// the LED HID transport is write-only, PM/SUB/style resolution relies
// on the static registry and any "model" quirk override rather than a
// wire read.
type ledHidProtocol struct {
	desc   DeviceDescriptor
	tr     Transport
	quirks *Quirks
	style  LedDeviceStyle
}

// NewLedHidProtocol creates a LED HID protocol handler. quirks may be
// nil, in which case the family default style is used.
func NewLedHidProtocol(desc DeviceDescriptor, tr Transport, quirks *Quirks) Protocol {
	return &ledHidProtocol{desc: desc, tr: tr, quirks: quirks}
}

// Handshake resolves the device's LedDeviceStyle. There is no wire
// read: PM/SUB are taken from the device family, and the style is
// either the quirk-overridden model name or the family default.
func (p *ledHidProtocol) Handshake() (HandshakeResult, error) {
	style := ledStyleDefault(p.desc.DeviceFamilyID)

	if p.quirks != nil {
		if model := p.quirks.GetModel(); model != "" {
			if s, ok := ledStyleByName(model); ok {
				style = s
			}
		}
	}

	p.style = style

	return HandshakeResult{
		HasResolution: false,
		ModelID:       uint32(p.desc.DeviceFamilyID),
		PixelFormat:   PixelFormatLedSegments,
		UseJPEG:       false,
		LedStyle:      &p.style,
	}, nil
}

// SendFrame packs job.Bytes (a per-segment RGB colour vector, 3 bytes
// per LED, sized exactly to style.TotalLEDs*3) into one or more
// fixed-length HID reports.
func (p *ledHidProtocol) SendFrame(job FrameJob) error {
	want := p.style.TotalLEDs * 3
	if len(job.Bytes) != want {
		return ErrProtocolError(p.desc.Key(),
			fmt.Sprintf("led frame size %d != expected %d", len(job.Bytes), want))
	}

	err := p.tr.Write(job.Bytes)
	if err != nil {
		return ErrWireIoTimeout(p.desc.Key(), "led-hid-write")
	}

	return nil
}

// Close releases the underlying transport.
func (p *ledHidProtocol) Close() error {
	return p.tr.Close()
}
