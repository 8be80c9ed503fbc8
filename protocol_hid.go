/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * HID LCD protocol handler (L3): 64-byte probe handshake, PM/SUB
 * extraction, JPEG-or-raw frame submission over the HID bulk
 * transport.
 */

package main

import (
	"encoding/binary"
	"strings"
)

const (
	hidProbeSize    = 64
	hidResponseSize = 1024

	hidHeaderMagic0 = 0x12
	hidHeaderMagic1 = 0x34
	hidHeaderMagic2 = 0x56
	hidHeaderMagic3 = 0x78

	hidCmdJPEG    = 2
	hidCmdRGB565  = 3
	hidHeaderMode = 2
)

// buildHidProbe constructs the fixed 64-byte handshake probe.
func buildHidProbe() []byte {
	probe := make([]byte, hidProbeSize)
	probe[0], probe[1], probe[2], probe[3] =
		hidHeaderMagic0, hidHeaderMagic1, hidHeaderMagic2, hidHeaderMagic3
	probe[56] = 0x01
	return probe
}

// hidFrameHeader builds the 64-byte header preceding a HID/Bulk frame
// payload.
func hidFrameHeader(cmd uint32, width, height int, payloadLen int) []byte {
	header := make([]byte, HidFrameHeaderSize)
	header[0], header[1], header[2], header[3] =
		hidHeaderMagic0, hidHeaderMagic1, hidHeaderMagic2, hidHeaderMagic3
	binary.LittleEndian.PutUint32(header[4:8], cmd)
	binary.LittleEndian.PutUint32(header[8:12], uint32(width))
	binary.LittleEndian.PutUint32(header[12:16], uint32(height))
	binary.LittleEndian.PutUint32(header[56:60], hidHeaderMode)
	binary.LittleEndian.PutUint32(header[60:64], uint32(payloadLen))
	return header
}

// hidProtocol implements Protocol for the HID LCD family.
type hidProtocol struct {
	desc   DeviceDescriptor
	tr     Transport
	result HandshakeResult
	hint   *PanelProfile
}

// NewHidProtocol creates a HID LCD protocol handler. hint, when
// non-nil, is the StateStore's last-known PanelProfile for this
// device; Handshake reuses its Resolution/PixelFormat instead of
// re-deriving them through pmToFBL/fblToResolution when the freshly
// read PM and serial still match it. A mismatch always falls back to
// the live derivation.
func NewHidProtocol(desc DeviceDescriptor, tr Transport, hint *PanelProfile) Protocol {
	return &hidProtocol{desc: desc, tr: tr, hint: hint}
}

// Handshake writes the 64-byte probe, reads 1024 bytes, and extracts
// PM/SUB/serial per spec.md §4.3.2.
func (p *hidProtocol) Handshake() (HandshakeResult, error) {
	err := p.tr.Write(buildHidProbe())
	if err != nil {
		return HandshakeResult{}, ErrWireIoTimeout(p.desc.Key(), "hid-probe-write")
	}

	resp, err := p.tr.Read(hidResponseSize)
	if err != nil {
		return HandshakeResult{}, ErrWireIoTimeout(p.desc.Key(), "hid-probe-read")
	}

	if len(resp) < 41 {
		return HandshakeResult{}, ErrHandshakeFailed(p.desc.Key(), "short handshake response")
	}

	pm := uint32(resp[24])
	sub := uint32(resp[36])

	if pm == 0 {
		return HandshakeResult{}, ErrHandshakeFailed(p.desc.Key(), "PM == 0")
	}

	serial := strings.TrimRight(string(resp[40:56]), "\x00")

	var res Resolution
	var pixelFormat PixelFormat
	hasRes := true
	if p.hint != nil && p.hint.ModelID == pm && p.hint.Serial == serial {
		res = Resolution{Width: p.hint.Width, Height: p.hint.Height}
		pixelFormat = p.hint.PixelFormat
	} else if fbl, known := pmToFBL(pm, sub); !known && p.desc.ImplementationKey == ImplBulkLCD {
		// A Bulk LCD device with an unrecognised PM gets no
		// resolution; the caller decides how to proceed.
		hasRes = false
	} else {
		res = fblToResolution(fbl, pm)
		pixelFormat = rgb565Endianness(res, fbl)
	}

	result := HandshakeResult{
		Resolution:    res,
		HasResolution: hasRes,
		ModelID:       pm,
		Serial:        serial,
		RawResponse:   resp,
		SubType:       sub,
		PixelFormat:   pixelFormat,
		UseJPEG:       pm != 32,
	}

	p.result = result
	return result, nil
}

// SendFrame writes the 64-byte header, streams the payload in
// HidBulkWriteChunk pieces, and terminates the whole header+payload
// frame with a single ZLP.
func (p *hidProtocol) SendFrame(job FrameJob) error {
	cmd := uint32(hidCmdJPEG)
	if job.PixelFormat != PixelFormatJPEG {
		cmd = hidCmdRGB565
	}

	header := hidFrameHeader(cmd, job.Width, job.Height, len(job.Bytes))

	err := p.tr.Write(header)
	if err != nil {
		return ErrWireIoTimeout(p.desc.Key(), "hid-frame-header")
	}

	err = p.tr.Write(job.Bytes)
	if err != nil {
		return ErrWireIoTimeout(p.desc.Key(), "hid-frame-payload")
	}

	if err := p.tr.EndFrame(); err != nil {
		return ErrWireIoTimeout(p.desc.Key(), "hid-frame-zlp")
	}

	return nil
}

// Close releases the underlying transport.
func (p *hidProtocol) Close() error {
	return p.tr.Close()
}

// NewBulkProtocol creates a Bulk LCD protocol handler. Framing,
// handshake and PM rules are identical to HID LCD (spec.md §4.3.3),
// so it is the same hidProtocol, driven over the same usbBulkTransport
// type. The one difference is in Handshake: for a Bulk LCD device an
// unrecognised PM yields HasResolution == false instead of the
// 480x480 fallback.
func NewBulkProtocol(desc DeviceDescriptor, tr Transport, hint *PanelProfile) Protocol {
	return &hidProtocol{desc: desc, tr: tr, hint: hint}
}
