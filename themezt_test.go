/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 */

package main

import (
	"bytes"
	"testing"
)

func TestThemeZtRoundTripUniformDelays(t *testing.T) {
	frames := []ThemeZtFrame{
		{JPEG: []byte{1, 2, 3}, DelayMs: 100},
		{JPEG: []byte{4, 5}, DelayMs: 100},
		{JPEG: []byte{6, 7, 8, 9}, DelayMs: 100},
	}

	var buf bytes.Buffer
	if err := WriteThemeZt(&buf, frames); err != nil {
		t.Fatalf("WriteThemeZt() error = %v", err)
	}

	got, err := ReadThemeZt(&buf)
	if err != nil {
		t.Fatalf("ReadThemeZt() error = %v", err)
	}
	if len(got) != len(frames) {
		t.Fatalf("got %d frames, want %d", len(got), len(frames))
	}
	for i, f := range got {
		if string(f.JPEG) != string(frames[i].JPEG) {
			t.Errorf("frame %d: JPEG = %v, want %v", i, f.JPEG, frames[i].JPEG)
		}
		if f.DelayMs != 100 {
			t.Errorf("frame %d: DelayMs = %d, want 100", i, f.DelayMs)
		}
	}
}

func TestThemeZtLastFrameReusesPreviousDelay(t *testing.T) {
	// The container format has no slot for the last frame's own delay:
	// WriteThemeZt derives timestamps only from the delays that precede
	// the last frame, so a reader reconstructs the last frame's delay
	// as a repeat of the one before it, not the original value.
	frames := []ThemeZtFrame{
		{JPEG: []byte{1}, DelayMs: 50},
		{JPEG: []byte{2}, DelayMs: 80},
		{JPEG: []byte{3}, DelayMs: 999},
	}

	var buf bytes.Buffer
	if err := WriteThemeZt(&buf, frames); err != nil {
		t.Fatalf("WriteThemeZt() error = %v", err)
	}

	got, err := ReadThemeZt(&buf)
	if err != nil {
		t.Fatalf("ReadThemeZt() error = %v", err)
	}
	if got[2].DelayMs != 80 {
		t.Errorf("last frame DelayMs = %d, want 80 (reused from the prior frame)", got[2].DelayMs)
	}
}

func TestThemeZtSingleFrameUsesDefaultDelay(t *testing.T) {
	frames := []ThemeZtFrame{{JPEG: []byte{1, 2}, DelayMs: 250}}

	var buf bytes.Buffer
	if err := WriteThemeZt(&buf, frames); err != nil {
		t.Fatalf("WriteThemeZt() error = %v", err)
	}

	got, err := ReadThemeZt(&buf)
	if err != nil {
		t.Fatalf("ReadThemeZt() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d frames, want 1", len(got))
	}
	if got[0].DelayMs != themeZtDefaultDelayMs {
		t.Errorf("DelayMs = %d, want default %d", got[0].DelayMs, themeZtDefaultDelayMs)
	}
}

func TestThemeZtBadMagicIsFormatError(t *testing.T) {
	buf := bytes.NewReader([]byte{0x00, 0, 0, 0, 0})
	_, err := ReadThemeZt(buf)
	if !IsTag(err, TagFormatError) {
		t.Errorf("ReadThemeZt() error tag = %v, want %s", err, TagFormatError)
	}
}

func TestThemeZtNegativeFrameCountIsFormatError(t *testing.T) {
	buf := bytes.NewReader([]byte{themeZtMagic, 0xff, 0xff, 0xff, 0xff})
	_, err := ReadThemeZt(buf)
	if !IsTag(err, TagFormatError) {
		t.Errorf("ReadThemeZt() error tag = %v, want %s", err, TagFormatError)
	}
}

func TestThemeZtTruncatedFrameBodyIsFormatError(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(themeZtMagic)
	writeI32LE(&buf, 1)  // frame_count
	writeI32LE(&buf, 0)  // timestamp[0]
	writeI32LE(&buf, 10) // frame[0] size = 10, but no body follows

	_, err := ReadThemeZt(&buf)
	if !IsTag(err, TagFormatError) {
		t.Errorf("ReadThemeZt() error tag = %v, want %s", err, TagFormatError)
	}
}

func TestThemeZtFrameDelayClampsToOneMillisecond(t *testing.T) {
	timestamps := []int32{0, 0, 5}
	if d := themeZtFrameDelay(timestamps, 0); d != 1 {
		t.Errorf("themeZtFrameDelay(0) = %d, want 1 (clamped)", d)
	}
	if d := themeZtFrameDelay(timestamps, 1); d != 5 {
		t.Errorf("themeZtFrameDelay(1) = %d, want 5", d)
	}
}
