/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 */

package main

import "testing"

func TestLedStyleDefaultCyclesThroughTable(t *testing.T) {
	for family := 0; family < 4; family++ {
		style := ledStyleDefault(family)
		want := ledStyles[family%len(ledStyles)]
		if style.Name != want.Name {
			t.Errorf("ledStyleDefault(%d) = %q, want %q", family, style.Name, want.Name)
		}
	}
}

func TestLedStyleByName(t *testing.T) {
	style, ok := ledStyleByName("fan-4x16")
	if !ok {
		t.Fatal("ledStyleByName(\"fan-4x16\") not found")
	}
	if style.TotalLEDs != 64 {
		t.Errorf("TotalLEDs = %d, want 64", style.TotalLEDs)
	}

	_, ok = ledStyleByName("no-such-style")
	if ok {
		t.Error("ledStyleByName matched a non-existent style")
	}
}

func TestLedStylesSegmentSizesSumToTotal(t *testing.T) {
	for _, s := range ledStyles {
		sum := 0
		for _, n := range s.SegmentSizes {
			sum += n
		}
		if sum != s.TotalLEDs {
			t.Errorf("style %q: segment sizes sum to %d, want TotalLEDs %d", s.Name, sum, s.TotalLEDs)
		}
	}
}

func TestLedHidProtocolHandshakeDefaultStyle(t *testing.T) {
	tr := &fakeTransport{}
	desc := DeviceDescriptor{DeviceFamilyID: 0}

	proto := NewLedHidProtocol(desc, tr, nil)
	result, err := proto.Handshake()
	if err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}
	if result.HasResolution {
		t.Error("HasResolution = true, want false for LED HID")
	}
	if result.LedStyle == nil {
		t.Fatal("LedStyle is nil")
	}
	if result.LedStyle.Name != ledStyles[0].Name {
		t.Errorf("LedStyle = %q, want %q", result.LedStyle.Name, ledStyles[0].Name)
	}
}

func TestLedHidProtocolHandshakeQuirkOverride(t *testing.T) {
	tr := &fakeTransport{}
	desc := DeviceDescriptor{DeviceFamilyID: 0}

	quirks := NewQuirks()
	quirks.put(&Quirk{Name: QuirkNmModel, Parsed: "hr10-7segment"})

	proto := NewLedHidProtocol(desc, tr, quirks)
	result, err := proto.Handshake()
	if err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}
	if result.LedStyle.Name != "hr10-7segment" {
		t.Errorf("LedStyle = %q, want overridden hr10-7segment", result.LedStyle.Name)
	}
}

func TestLedHidProtocolSendFrameSizeMismatch(t *testing.T) {
	tr := &fakeTransport{}
	proto := NewLedHidProtocol(DeviceDescriptor{}, tr, nil)
	if _, err := proto.Handshake(); err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}

	err := proto.SendFrame(FrameJob{Bytes: []byte{1, 2, 3}})
	if !IsTag(err, TagProtocolError) {
		t.Errorf("SendFrame() error tag = %v, want %s", err, TagProtocolError)
	}
}

func TestLedHidProtocolSendFrameWritesExactPayload(t *testing.T) {
	tr := &fakeTransport{}
	desc := DeviceDescriptor{DeviceFamilyID: 0}
	proto := NewLedHidProtocol(desc, tr, nil)

	result, err := proto.Handshake()
	if err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}

	payload := make([]byte, result.LedStyle.TotalLEDs*3)
	for i := range payload {
		payload[i] = byte(i)
	}

	if err := proto.SendFrame(FrameJob{Bytes: payload}); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}
	if len(tr.writes) != 1 || string(tr.writes[0]) != string(payload) {
		t.Error("SendFrame() did not forward the exact payload to the transport")
	}
}
