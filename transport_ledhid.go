/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * LED HID transport: sends fixed-length HID reports; no framing state.
 */

package main

import (
	"fmt"

	"github.com/google/gousb"
)

// ledHidReportSize is the fixed HID report length used by the
// ALi ARGB controller family.
const ledHidReportSize = 64

// ledHidTransport implements Transport over a single interrupt OUT
// endpoint carrying fixed-length HID reports.
type ledHidTransport struct {
	desc DeviceDescriptor

	dev      *gousb.Device
	intfDone func()
	out      *gousb.OutEndpoint
}

// NewLedHidTransport creates a Transport for a LED HID device.
func NewLedHidTransport(desc DeviceDescriptor) Transport {
	return &ledHidTransport{desc: desc}
}

// Open claims the device's default interface and locates its
// interrupt (or bulk) OUT endpoint.
func (t *ledHidTransport) Open() error {
	devs, err := usbCtx.OpenDevices(func(d *gousb.DeviceDesc) bool {
		return uint16(d.Vendor) == t.desc.Vid && uint16(d.Product) == t.desc.Pid
	})
	if err != nil || len(devs) == 0 {
		for _, d := range devs {
			d.Close()
		}
		return ErrTransportOpenFailed(t.desc.Key(), fmt.Errorf("device not present"))
	}

	dev := devs[0]
	for _, extra := range devs[1:] {
		extra.Close()
	}

	dev.SetAutoDetach(true)

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		return ErrTransportOpenFailed(t.desc.Key(), err)
	}

	var out *gousb.OutEndpoint
	for _, ep := range intf.Setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionOut {
			out, err = intf.OutEndpoint(ep.Number)
			break
		}
	}

	if err != nil || out == nil {
		done()
		dev.Close()
		return ErrTransportOpenFailed(t.desc.Key(), fmt.Errorf("no usable OUT endpoint"))
	}

	t.dev, t.intfDone, t.out = dev, done, out

	return nil
}

// Write sends one or more fixed-length HID reports. data must be a
// multiple of ledHidReportSize; callers (the LED HID protocol
// handler) are responsible for padding the final report.
func (t *ledHidTransport) Write(data []byte) error {
	for len(data) > 0 {
		n := ledHidReportSize
		if n > len(data) {
			n = len(data)
		}

		report := data[:n]
		if n < ledHidReportSize {
			padded := make([]byte, ledHidReportSize)
			copy(padded, report)
			report = padded
		}

		_, err := t.out.Write(report)
		if err != nil {
			return ErrWireIoTimeout(t.desc.Key(), "write")
		}

		data = data[n:]
	}

	return nil
}

// Read is unsupported: LED HID devices are write-only in this core.
func (t *ledHidTransport) Read(length int) ([]byte, error) {
	return nil, ErrProtocolError(t.desc.Key(), "led hid transport is write-only")
}

// EndFrame is a no-op: each HID report is already self-delimited, there
// is no separate frame terminator.
func (t *ledHidTransport) EndFrame() error {
	return nil
}

// Close releases the claimed interface and the device handle.
func (t *ledHidTransport) Close() error {
	if t.intfDone != nil {
		t.intfDone()
		t.intfDone = nil
	}

	if t.dev != nil {
		err := t.dev.Close()
		t.dev = nil
		return err
	}

	return nil
}
