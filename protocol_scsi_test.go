/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 */

package main

import (
	"errors"
	"testing"
)

// fakeScsiExecutor is an in-memory ScsiExecutor recording every
// command/data pair it is asked to issue.
type fakeScsiExecutor struct {
	pollResp []byte
	writeErr error

	writes []struct {
		node string
		cmd  []byte
		data []byte
	}
}

func (f *fakeScsiExecutor) Read(node string, cmd []byte, readLen int) ([]byte, error) {
	return f.pollResp, nil
}

func (f *fakeScsiExecutor) Write(node string, cmd []byte, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, struct {
		node string
		cmd  []byte
		data []byte
	}{node, append([]byte(nil), cmd...), append([]byte(nil), data...)})
	return nil
}

func TestBuildScsiChunkPlan(t *testing.T) {
	plan := buildScsiChunkPlan(320 * 320 * 2)

	wantLengths := []int{65536, 65536, 65536, 8192}
	wantCmds := []uint32{0x1015, 0x1115, 0x1215, 0x1315}

	if len(plan) != len(wantLengths) {
		t.Fatalf("got %d segments, want %d", len(plan), len(wantLengths))
	}

	for i, seg := range plan {
		if seg.Length != wantLengths[i] {
			t.Errorf("segment %d: length = %d, want %d", i, seg.Length, wantLengths[i])
		}
		if seg.Cmd != wantCmds[i] {
			t.Errorf("segment %d: cmd = %#x, want %#x", i, seg.Cmd, wantCmds[i])
		}
	}

	if total := plan.TotalLength(); total != 320*320*2 {
		t.Errorf("TotalLength() = %d, want %d", total, 320*320*2)
	}
}

func TestBuildScsiChunkPlanExactMultiple(t *testing.T) {
	plan := buildScsiChunkPlan(ScsiChunkSize * 2)
	if len(plan) != 2 {
		t.Fatalf("got %d segments, want 2", len(plan))
	}
	for i, seg := range plan {
		if seg.Length != ScsiChunkSize {
			t.Errorf("segment %d: length = %d, want %d", i, seg.Length, ScsiChunkSize)
		}
	}
}

func TestScsiProtocolHandshakeSuccess(t *testing.T) {
	exec := &fakeScsiExecutor{pollResp: []byte{0x01, 0x02}}
	desc := DeviceDescriptor{Vid: 0x1234, Pid: 0x5678, BusPath: "1-1", DeviceFamilyID: 2, ScsiPassThroughNode: "/dev/sg0"}

	proto := NewScsiProtocol(desc, exec, nil)
	result, err := proto.Handshake()
	if err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}

	if !result.HasResolution {
		t.Fatal("HasResolution = false, want true")
	}
	if result.Resolution.Width != 320 || result.Resolution.Height != 320 {
		t.Errorf("Resolution = %+v, want 320x320", result.Resolution)
	}
	if result.ModelID != 2 {
		t.Errorf("ModelID = %d, want 2", result.ModelID)
	}
	if result.UseJPEG {
		t.Error("UseJPEG = true, want false")
	}
	if len(exec.writes) != 1 {
		t.Fatalf("got %d writes during handshake, want 1 (init command)", len(exec.writes))
	}
}

func TestScsiProtocolHandshakeEmptyPollFails(t *testing.T) {
	exec := &fakeScsiExecutor{pollResp: nil}
	desc := DeviceDescriptor{ScsiPassThroughNode: "/dev/sg0"}

	proto := NewScsiProtocol(desc, exec, nil)
	_, err := proto.Handshake()
	if err == nil {
		t.Fatal("Handshake() error = nil, want non-nil")
	}
	if !IsTag(err, TagHandshakeFailed) {
		t.Errorf("Handshake() error tag = %v, want %s", err, TagHandshakeFailed)
	}
}

func TestScsiProtocolHandshakeInitWriteFails(t *testing.T) {
	exec := &fakeScsiExecutor{pollResp: []byte{0x01}, writeErr: errors.New("boom")}
	desc := DeviceDescriptor{ScsiPassThroughNode: "/dev/sg0"}

	proto := NewScsiProtocol(desc, exec, nil)
	_, err := proto.Handshake()
	if !IsTag(err, TagHandshakeFailed) {
		t.Errorf("Handshake() error tag = %v, want %s", err, TagHandshakeFailed)
	}
}

func TestScsiProtocolSendFramePartitionsAndPads(t *testing.T) {
	exec := &fakeScsiExecutor{}
	desc := DeviceDescriptor{BusPath: "1-1", ScsiPassThroughNode: "/dev/sg0"}

	proto := NewScsiProtocol(desc, exec, nil)

	job := FrameJob{Bytes: make([]byte, 100), Width: 320, Height: 320, PixelFormat: PixelFormatRGB565BE}
	if err := proto.SendFrame(job); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}

	if len(exec.writes) != 4 {
		t.Fatalf("got %d chunk writes, want 4", len(exec.writes))
	}

	total := 0
	for _, w := range exec.writes {
		total += len(w.data)
	}
	if total != 320*320*2 {
		t.Errorf("total bytes written = %d, want %d", total, 320*320*2)
	}
}

func TestScsiProtocolSendFrameTooLarge(t *testing.T) {
	exec := &fakeScsiExecutor{}
	desc := DeviceDescriptor{ScsiPassThroughNode: "/dev/sg0"}

	proto := NewScsiProtocol(desc, exec, nil)
	job := FrameJob{Bytes: make([]byte, 320*320*2+1)}

	err := proto.SendFrame(job)
	if !IsTag(err, TagProtocolError) {
		t.Errorf("SendFrame() error tag = %v, want %s", err, TagProtocolError)
	}
}

func TestScsiProtocolSendFrameWriteFailure(t *testing.T) {
	exec := &fakeScsiExecutor{writeErr: errors.New("device gone")}
	desc := DeviceDescriptor{ScsiPassThroughNode: "/dev/sg0"}

	proto := NewScsiProtocol(desc, exec, nil)
	job := FrameJob{Bytes: make([]byte, 320*320*2)}

	err := proto.SendFrame(job)
	if !IsTag(err, TagWireIoTimeout) {
		t.Errorf("SendFrame() error tag = %v, want %s", err, TagWireIoTimeout)
	}
}

func TestBuildScsiCmdPacketChecksum(t *testing.T) {
	packet := buildScsiCmdPacket(0x1015, 65536)
	if len(packet) != scsiCmdPacketSize {
		t.Fatalf("len(packet) = %d, want %d", len(packet), scsiCmdPacketSize)
	}

	other := buildScsiCmdPacket(0x1015, 65536)
	for i := range packet {
		if packet[i] != other[i] {
			t.Fatalf("buildScsiCmdPacket is not deterministic at byte %d", i)
		}
	}

	changed := buildScsiCmdPacket(0x1115, 65536)
	if string(packet) == string(changed) {
		t.Error("different commands produced identical packets")
	}
}
