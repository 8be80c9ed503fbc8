/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Theme.zt animation container (L6): magic byte, frame-count,
 * millisecond timestamps, then size-prefixed JPEG frames.
 */

package main

import (
	"encoding/binary"
	"fmt"
	"io"
)

// themeZtMagic is the fixed first byte of every Theme.zt container.
const themeZtMagic = 0xDC

// themeZtDefaultDelayMs is the delay assigned to the final frame of a
// single-frame animation, or when no later timestamp is available to
// derive it from.
const themeZtDefaultDelayMs = 42

// ThemeZtFrame is one decoded animation frame: its JPEG bytes and the
// time (ms) to hold it before advancing.
type ThemeZtFrame struct {
	JPEG    []byte
	DelayMs int32
}

// ReadThemeZt parses a Theme.zt container from r.
func ReadThemeZt(r io.Reader) ([]ThemeZtFrame, error) {
	var magic [1]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, ErrFormatError(fmt.Sprintf("theme.zt: %s", err))
	}
	if magic[0] != themeZtMagic {
		return nil, ErrFormatError(fmt.Sprintf("theme.zt: bad magic 0x%02x", magic[0]))
	}

	frameCount, err := readI32LE(r)
	if err != nil {
		return nil, ErrFormatError(fmt.Sprintf("theme.zt: frame_count: %s", err))
	}
	if frameCount < 0 {
		return nil, ErrFormatError(fmt.Sprintf("theme.zt: negative frame_count %d", frameCount))
	}

	timestamps := make([]int32, frameCount)
	for i := range timestamps {
		ts, err := readI32LE(r)
		if err != nil {
			return nil, ErrFormatError(fmt.Sprintf("theme.zt: timestamp[%d]: %s", i, err))
		}
		timestamps[i] = ts
	}

	blobs := make([][]byte, frameCount)
	for i := range blobs {
		size, err := readI32LE(r)
		if err != nil {
			return nil, ErrFormatError(fmt.Sprintf("theme.zt: frame[%d] size: %s", i, err))
		}
		if size < 0 {
			return nil, ErrFormatError(fmt.Sprintf("theme.zt: frame[%d] negative size %d", i, size))
		}

		blob := make([]byte, size)
		if _, err := io.ReadFull(r, blob); err != nil {
			return nil, ErrFormatError(fmt.Sprintf("theme.zt: frame[%d] body: %s", i, err))
		}
		blobs[i] = blob
	}

	frames := make([]ThemeZtFrame, frameCount)
	for i := range frames {
		frames[i].JPEG = blobs[i]
		frames[i].DelayMs = themeZtFrameDelay(timestamps, i)
	}

	return frames, nil
}

// themeZtFrameDelay computes frame i's display delay: the forward
// difference to the next timestamp, clamped to >= 1ms; the final
// frame reuses the previous delay, or themeZtDefaultDelayMs if there
// is no previous frame.
func themeZtFrameDelay(timestamps []int32, i int) int32 {
	if i+1 < len(timestamps) {
		delay := timestamps[i+1] - timestamps[i]
		if delay < 1 {
			delay = 1
		}
		return delay
	}

	if i > 0 {
		return themeZtFrameDelay(timestamps, i-1)
	}

	return themeZtDefaultDelayMs
}

// WriteThemeZt serialises frames as a Theme.zt container. Timestamps
// are reconstructed as a running sum of each frame's DelayMs, starting
// at 0, so that a subsequent ReadThemeZt reproduces the same delays.
func WriteThemeZt(w io.Writer, frames []ThemeZtFrame) error {
	if _, err := w.Write([]byte{themeZtMagic}); err != nil {
		return err
	}

	if err := writeI32LE(w, int32(len(frames))); err != nil {
		return err
	}

	ts := int32(0)
	for i, f := range frames {
		if err := writeI32LE(w, ts); err != nil {
			return err
		}
		if i < len(frames)-1 {
			ts += f.DelayMs
		}
	}

	for _, f := range frames {
		if err := writeI32LE(w, int32(len(f.JPEG))); err != nil {
			return err
		}
		if _, err := w.Write(f.JPEG); err != nil {
			return err
		}
	}

	return nil
}

func readI32LE(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func writeI32LE(w io.Writer, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}
