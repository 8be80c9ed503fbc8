/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * SCSI LCD protocol handler (L3): poll/init handshake, 4-chunk frame
 * submission over a stateless SCSI pass-through transport.
 */

package main

import "fmt"

const (
	scsiPollCmd = 0x0000_00F5
	scsiInitCmd = 0x0000_01F5
	scsiPollReadSize  = 0xE100
	scsiInitWriteSize = 0xE100
)

// defaultScsiProfile is the default panel profile for SCSI LCD
// devices: 320x320, RGB565, 4-chunk plan, matching spec.md E2E-1.
func defaultScsiProfile() PanelProfile {
	return PanelProfile{
		Width:         320,
		Height:        320,
		PixelFormat:   PixelFormatRGB565BE,
		BytesPerPixel: 2,
		ChunkPlan:     buildScsiChunkPlan(320 * 320 * 2),
	}
}

// buildScsiChunkPlan partitions totalBytes into segments of at most
// ScsiChunkSize bytes; segment i carries the command word
// ScsiFrameCmdBase | 0x1000 | (i << 8).
func buildScsiChunkPlan(totalBytes int) ChunkPlan {
	var plan ChunkPlan

	remaining := totalBytes
	for i := 0; remaining > 0; i++ {
		n := ScsiChunkSize
		if n > remaining {
			n = remaining
		}

		// Index i occupies the low nibble of the command's second
		// byte, under a fixed 0x1 in its high nibble: 0x1015, 0x1115,
		// 0x1215, 0x1315, ... for base 0x15.
		cmd := uint32(ScsiFrameCmdBase) | 0x1000 | (uint32(i) << 8)
		plan = append(plan, ChunkSegment{Cmd: cmd, Length: n})

		remaining -= n
	}

	return plan
}

// scsiProtocol implements Protocol for the SCSI LCD family.
type scsiProtocol struct {
	desc    DeviceDescriptor
	tr      *scsiTransport
	profile PanelProfile
}

// NewScsiProtocol creates a SCSI LCD protocol handler bound to node.
// hint, when non-nil and recorded against the same DeviceFamilyID,
// is the StateStore's last-known PanelProfile for this device; its
// geometry and pixel format replace the hardcoded default. A hint that
// carries no chunk plan (the StateStore does not save one) gets a
// fresh RGB565 plan built from its geometry. The poll/init handshake
// still runs unconditionally and remains the authority on whether the
// device is actually there.
func NewScsiProtocol(desc DeviceDescriptor, exec ScsiExecutor, hint *PanelProfile) Protocol {
	profile := defaultScsiProfile()
	if hint != nil && hint.ModelID == uint32(desc.DeviceFamilyID) {
		profile = *hint
		if len(profile.ChunkPlan) == 0 {
			profile.BytesPerPixel = 2
			profile.ChunkPlan = buildScsiChunkPlan(profile.Width * profile.Height * 2)
		}
	}

	return &scsiProtocol{
		desc:    desc,
		tr:      NewScsiTransport(desc.ScsiPassThroughNode, exec).(*scsiTransport),
		profile: profile,
	}
}

// Handshake issues the poll/init command pair. A device that returns
// non-empty response bytes to the poll is considered ready.
func (p *scsiProtocol) Handshake() (HandshakeResult, error) {
	p.tr.SetCommand(scsiPollCmd)
	resp, err := p.tr.Read(scsiPollReadSize)
	if err != nil {
		return HandshakeResult{}, ErrWireIoTimeout(p.desc.Key(), "scsi-poll")
	}

	if len(resp) == 0 {
		return HandshakeResult{}, ErrHandshakeFailed(p.desc.Key(), "empty poll response")
	}

	p.tr.SetCommand(scsiInitCmd)
	err = p.tr.Write(make([]byte, scsiInitWriteSize))
	if err != nil {
		return HandshakeResult{}, ErrHandshakeFailed(p.desc.Key(), "init command failed")
	}

	return HandshakeResult{
		Resolution:    Resolution{p.profile.Width, p.profile.Height},
		HasResolution: true,
		ModelID:       uint32(p.desc.DeviceFamilyID),
		RawResponse:   resp,
		PixelFormat:   p.profile.PixelFormat,
		UseJPEG:       false,
	}, nil
}

// SendFrame pads job.Bytes to the plan's total length, then submits
// it chunk-by-chunk. On the first chunk write failure the frame is
// aborted and a transient error returned; the sender stays open.
func (p *scsiProtocol) SendFrame(job FrameJob) error {
	total := p.profile.ChunkPlan.TotalLength()

	data := job.Bytes
	if len(data) < total {
		padded := make([]byte, total)
		copy(padded, data)
		data = padded
	} else if len(data) > total {
		return ErrProtocolError(p.desc.Key(),
			fmt.Sprintf("frame too large: %d > %d", len(data), total))
	}

	offset := 0
	for _, seg := range p.profile.ChunkPlan {
		p.tr.SetCommand(seg.Cmd)

		err := p.tr.Write(data[offset : offset+seg.Length])
		if err != nil {
			return ErrWireIoTimeout(p.desc.Key(), "scsi-chunk-write")
		}

		offset += seg.Length
	}

	return nil
}

// Close is a no-op: the SCSI transport holds no open session.
func (p *scsiProtocol) Close() error {
	return p.tr.Close()
}
