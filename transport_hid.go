/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * HID/raw-USB-bulk transport: opens the device, claims the
 * vendor-specific (or first) interface, detaches any kernel driver,
 * and locates one bulk IN and one bulk OUT endpoint.
 */

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// usbBulkTransport implements Transport over a claimed gousb interface
// with one bulk IN and one bulk OUT endpoint. It backs both the HID
// LCD and the raw-vendor Bulk LCD protocol handlers, which share an
// identical open/claim/detach lifecycle.
type usbBulkTransport struct {
	desc DeviceDescriptor

	dev      *gousb.Device
	intfDone func()
	intf     *gousb.Interface
	in       *gousb.InEndpoint
	out      *gousb.OutEndpoint

	readDeadline  time.Duration
	writeDeadline time.Duration
}

// NewUsbBulkTransport creates a Transport for a HID-LCD or Bulk-LCD
// device, identified by its DeviceDescriptor.
func NewUsbBulkTransport(desc DeviceDescriptor) Transport {
	return &usbBulkTransport{
		desc:          desc,
		readDeadline:  hidHandshakeDeadline,
		writeDeadline: hidFrameDeadline,
	}
}

// Open claims the device's vendor-specific interface (falling back to
// the first interface), detaching any attached kernel driver.
func (t *usbBulkTransport) Open() error {
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

	var in *gousb.InEndpoint
	var out *gousb.OutEndpoint

	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}

		if ep.Direction == gousb.EndpointDirectionIn && in == nil {
			in, err = intf.InEndpoint(ep.Number)
		} else if ep.Direction == gousb.EndpointDirectionOut && out == nil {
			out, err = intf.OutEndpoint(ep.Number)
		}

		if err != nil {
			break
		}
	}

	if err != nil || in == nil || out == nil {
		done()
		dev.Close()
		return ErrTransportOpenFailed(t.desc.Key(),
			fmt.Errorf("no usable bulk endpoint pair"))
	}

	t.dev, t.intfDone, t.intf, t.in, t.out = dev, done, intf, in, out

	return nil
}

// Write streams data to the bulk OUT endpoint in HidBulkWriteChunk
// pieces. It does not terminate the frame; callers end a logical frame
// with EndFrame once all of its writes (header, payload, ...) are done.
func (t *usbBulkTransport) Write(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.writeDeadline)
	defer cancel()

	for len(data) > 0 {
		n := HidBulkWriteChunk
		if n > len(data) {
			n = len(data)
		}

		_, err := t.out.WriteContext(ctx, data[:n])
		if err != nil {
			return ErrWireIoTimeout(t.desc.Key(), "write")
		}

		data = data[n:]
	}

	return nil
}

// EndFrame emits the zero-length packet that terminates a frame on the
// bulk OUT endpoint. It must be called once after a frame's header and
// payload writes, and never after the handshake probe.
func (t *usbBulkTransport) EndFrame() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.writeDeadline)
	defer cancel()

	_, err := t.out.WriteContext(ctx, nil)
	if err != nil {
		return ErrWireIoTimeout(t.desc.Key(), "write-zlp")
	}

	return nil
}

// Read reads up to length bytes from the bulk IN endpoint.
func (t *usbBulkTransport) Read(length int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.readDeadline)
	defer cancel()

	buf := make([]byte, length)
	n, err := t.in.ReadContext(ctx, buf)
	if err != nil {
		return nil, ErrWireIoTimeout(t.desc.Key(), "read")
	}

	return buf[:n], nil
}

// Close releases the claimed interface and the device handle. Safe
// to call more than once.
func (t *usbBulkTransport) Close() error {
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
