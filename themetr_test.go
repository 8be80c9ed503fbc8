/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 */

package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestThemeTrRoundTripStaticBackground(t *testing.T) {
	theme := &ThemeTr{
		ShowSystemInfo: true,
		Overlays: []OverlayElement{
			{
				Mode: 1, ModeSub: 2, X: 10, Y: 20, MainCount: 3, SubCount: 4,
				FontName:  "Arial",
				FontSize:  12.5,
				FontStyle: 1,
				ColourA:   255, ColourR: 10, ColourG: 20, ColourB: 30,
				Text: "hello",
			},
		},
		ShowBackground:   true,
		ShowScreenshot:   false,
		Direction:        90,
		UIMode:           1,
		Mode:             2,
		HideScreenshotBg: true,
		ScreenshotRect:   [4]int32{0, 0, 320, 320},
		ShowMask:         true,
		MaskCenter:       [2]int32{160, 160},
		MaskImagePNG:     []byte{1, 2, 3, 4},
		BackgroundMarker: 0,
		BackgroundPNG:    []byte{9, 9, 9},
	}

	var buf bytes.Buffer
	if err := WriteThemeTr(&buf, theme); err != nil {
		t.Fatalf("WriteThemeTr() error = %v", err)
	}

	got, err := ReadThemeTr(&buf)
	if err != nil {
		t.Fatalf("ReadThemeTr() error = %v", err)
	}

	if got.ShowSystemInfo != theme.ShowSystemInfo {
		t.Errorf("ShowSystemInfo = %v, want %v", got.ShowSystemInfo, theme.ShowSystemInfo)
	}
	if len(got.Overlays) != 1 {
		t.Fatalf("got %d overlays, want 1", len(got.Overlays))
	}
	o := got.Overlays[0]
	want := theme.Overlays[0]
	if o.FontName != want.FontName || o.Text != want.Text {
		t.Errorf("overlay strings = %+v, want %+v", o, want)
	}
	if o.FontSize != want.FontSize {
		t.Errorf("FontSize = %v, want %v", o.FontSize, want.FontSize)
	}
	if o.ColourA != want.ColourA || o.ColourR != want.ColourR || o.ColourG != want.ColourG || o.ColourB != want.ColourB {
		t.Errorf("overlay colour = %+v, want %+v", o, want)
	}
	if got.Direction != 90 || got.UIMode != 1 || got.Mode != 2 {
		t.Errorf("Direction/UIMode/Mode = %d/%d/%d, want 90/1/2", got.Direction, got.UIMode, got.Mode)
	}
	if got.ScreenshotRect != theme.ScreenshotRect {
		t.Errorf("ScreenshotRect = %v, want %v", got.ScreenshotRect, theme.ScreenshotRect)
	}
	if string(got.MaskImagePNG) != string(theme.MaskImagePNG) {
		t.Errorf("MaskImagePNG = %v, want %v", got.MaskImagePNG, theme.MaskImagePNG)
	}
	if got.BackgroundMarker != 0 || string(got.BackgroundPNG) != string(theme.BackgroundPNG) {
		t.Errorf("BackgroundPNG = %v, want %v", got.BackgroundPNG, theme.BackgroundPNG)
	}
}

func TestThemeTrRoundTripAnimatedBackground(t *testing.T) {
	theme := &ThemeTr{
		ShowBackground:   true,
		BackgroundMarker: 2,
		AnimationFrames: []ThemeZtFrame{
			{JPEG: []byte{1, 2, 3}, DelayMs: 100},
			{JPEG: []byte{4, 5, 6}, DelayMs: 100},
		},
	}

	var buf bytes.Buffer
	if err := WriteThemeTr(&buf, theme); err != nil {
		t.Fatalf("WriteThemeTr() error = %v", err)
	}

	got, err := ReadThemeTr(&buf)
	if err != nil {
		t.Fatalf("ReadThemeTr() error = %v", err)
	}
	if got.BackgroundMarker != 2 {
		t.Errorf("BackgroundMarker = %d, want 2", got.BackgroundMarker)
	}
	if len(got.AnimationFrames) != 2 {
		t.Fatalf("got %d animation frames, want 2", len(got.AnimationFrames))
	}
	for i, f := range got.AnimationFrames {
		if string(f.JPEG) != string(theme.AnimationFrames[i].JPEG) {
			t.Errorf("frame %d JPEG = %v, want %v", i, f.JPEG, theme.AnimationFrames[i].JPEG)
		}
	}
}

func TestThemeTrUnrecognisedHeaderIsFormatError(t *testing.T) {
	buf := bytes.NewReader([]byte{0xDC, 0xDC, 0xDC, 0xDC})
	_, err := ReadThemeTr(buf)
	if !IsTag(err, TagFormatError) {
		t.Errorf("ReadThemeTr() error tag = %v, want %s", err, TagFormatError)
	}
}

func TestThemeTrTruncatedHeaderIsFormatError(t *testing.T) {
	buf := bytes.NewReader([]byte{0xDD, 0xDC})
	_, err := ReadThemeTr(buf)
	if !IsTag(err, TagFormatError) {
		t.Errorf("ReadThemeTr() error tag = %v, want %s", err, TagFormatError)
	}
}

func Test7BitStringRoundTripShort(t *testing.T) {
	var buf bytes.Buffer
	if err := write7BitString(&buf, "hi"); err != nil {
		t.Fatalf("write7BitString() error = %v", err)
	}
	got, err := read7BitString(&buf)
	if err != nil {
		t.Fatalf("read7BitString() error = %v", err)
	}
	if got != "hi" {
		t.Errorf("got %q, want %q", got, "hi")
	}
}

func Test7BitStringRoundTripEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := write7BitString(&buf, ""); err != nil {
		t.Fatalf("write7BitString() error = %v", err)
	}
	got, err := read7BitString(&buf)
	if err != nil {
		t.Fatalf("read7BitString() error = %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func Test7BitStringRoundTripLong(t *testing.T) {
	long := strings.Repeat("x", 300) // exercises the multi-byte continuation encoding

	var buf bytes.Buffer
	if err := write7BitString(&buf, long); err != nil {
		t.Fatalf("write7BitString() error = %v", err)
	}
	got, err := read7BitString(&buf)
	if err != nil {
		t.Fatalf("read7BitString() error = %v", err)
	}
	if got != long {
		t.Errorf("got length %d, want %d", len(got), len(long))
	}
}

func TestFloat32BitsRoundTrip(t *testing.T) {
	f := float32(12.5)
	if got := float32FromBits(float32ToBits(f)); got != f {
		t.Errorf("float32FromBits(float32ToBits(%v)) = %v", f, got)
	}
}
