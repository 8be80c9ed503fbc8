/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * .tr theme archive (L6): a fixed header, an overlay element list,
 * display flags, a 10240-byte padding block, and either a static
 * background image or an embedded Theme.zt animation.
 */

package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// themeTrHeader is the only header this reader accepts. Any other
// 4-byte prefix (including the documented alternate DC DC layout) is
// a FormatError: no sample of the alternate layout exists to justify
// round-tripping it.
var themeTrHeader = [4]byte{0xDD, 0xDC, 0xDD, 0xDC}

// themeTrPaddingSize is the fixed size, in bytes, of the 0xDC padding
// block separating the display flags from the background payload.
const themeTrPaddingSize = 10240

const (
	themeTrFontUnit    = 3
	themeTrGdiCharset  = 134
)

// OverlayElement is one on-screen text/graphic overlay entry.
type OverlayElement struct {
	Mode, ModeSub   int32
	X, Y            int32
	MainCount       int32
	SubCount        int32
	FontName        string
	FontSize        float32
	FontStyle       uint8
	ColourA         uint8
	ColourR         uint8
	ColourG         uint8
	ColourB         uint8
	Text            string
}

// ThemeTr is the fully decoded contents of a .tr theme archive.
type ThemeTr struct {
	ShowSystemInfo bool
	Overlays       []OverlayElement

	ShowBackground   bool
	ShowScreenshot   bool
	Direction        int32 // one of 0, 90, 180, 270
	UIMode           int32
	Mode             int32
	HideScreenshotBg bool
	ScreenshotRect   [4]int32
	ShowMask         bool
	MaskCenter       [2]int32

	MaskImagePNG []byte // nil means "none"

	// BackgroundMarker == 0: BackgroundPNG holds a static image.
	// BackgroundMarker >  0: AnimationFrames holds an embedded
	// Theme.zt animation, BackgroundMarker frames long.
	BackgroundMarker int32
	BackgroundPNG    []byte
	AnimationFrames  []ThemeZtFrame
}

// ReadThemeTr parses a .tr archive from r.
func ReadThemeTr(r io.Reader) (*ThemeTr, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, ErrFormatError(fmt.Sprintf(".tr: %s", err))
	}
	if header != themeTrHeader {
		return nil, ErrFormatError(fmt.Sprintf(".tr: unrecognised header % x", header))
	}

	t := &ThemeTr{}

	var err error
	if t.ShowSystemInfo, err = readBool(r); err != nil {
		return nil, ErrFormatError(fmt.Sprintf(".tr: show_system_info: %s", err))
	}

	overlayCount, err := readI32LE(r)
	if err != nil {
		return nil, ErrFormatError(fmt.Sprintf(".tr: overlay_count: %s", err))
	}
	if overlayCount < 0 {
		return nil, ErrFormatError(fmt.Sprintf(".tr: negative overlay_count %d", overlayCount))
	}

	t.Overlays = make([]OverlayElement, overlayCount)
	for i := range t.Overlays {
		if t.Overlays[i], err = readOverlayElement(r); err != nil {
			return nil, ErrFormatError(fmt.Sprintf(".tr: overlay[%d]: %s", i, err))
		}
	}

	if t.ShowBackground, err = readBool(r); err != nil {
		return nil, ErrFormatError(fmt.Sprintf(".tr: show_background: %s", err))
	}
	if t.ShowScreenshot, err = readBool(r); err != nil {
		return nil, ErrFormatError(fmt.Sprintf(".tr: show_screenshot: %s", err))
	}
	if t.Direction, err = readI32LE(r); err != nil {
		return nil, ErrFormatError(fmt.Sprintf(".tr: direction: %s", err))
	}
	if t.UIMode, err = readI32LE(r); err != nil {
		return nil, ErrFormatError(fmt.Sprintf(".tr: ui_mode: %s", err))
	}
	if t.Mode, err = readI32LE(r); err != nil {
		return nil, ErrFormatError(fmt.Sprintf(".tr: mode: %s", err))
	}
	if t.HideScreenshotBg, err = readBool(r); err != nil {
		return nil, ErrFormatError(fmt.Sprintf(".tr: hide_screenshot_bg: %s", err))
	}
	for i := range t.ScreenshotRect {
		if t.ScreenshotRect[i], err = readI32LE(r); err != nil {
			return nil, ErrFormatError(fmt.Sprintf(".tr: screenshot_rect[%d]: %s", i, err))
		}
	}
	if t.ShowMask, err = readBool(r); err != nil {
		return nil, ErrFormatError(fmt.Sprintf(".tr: show_mask: %s", err))
	}
	for i := range t.MaskCenter {
		if t.MaskCenter[i], err = readI32LE(r); err != nil {
			return nil, ErrFormatError(fmt.Sprintf(".tr: mask_center[%d]: %s", i, err))
		}
	}

	var padding [themeTrPaddingSize]byte
	if _, err := io.ReadFull(r, padding[:]); err != nil {
		return nil, ErrFormatError(fmt.Sprintf(".tr: padding: %s", err))
	}

	maskLen, err := readI32LE(r)
	if err != nil {
		return nil, ErrFormatError(fmt.Sprintf(".tr: mask_image_len: %s", err))
	}
	if maskLen < 0 {
		return nil, ErrFormatError(fmt.Sprintf(".tr: negative mask_image_len %d", maskLen))
	}
	if maskLen > 0 {
		t.MaskImagePNG = make([]byte, maskLen)
		if _, err := io.ReadFull(r, t.MaskImagePNG); err != nil {
			return nil, ErrFormatError(fmt.Sprintf(".tr: mask_image: %s", err))
		}
	}

	if t.BackgroundMarker, err = readI32LE(r); err != nil {
		return nil, ErrFormatError(fmt.Sprintf(".tr: background_marker: %s", err))
	}

	if t.BackgroundMarker == 0 {
		bgLen, err := readI32LE(r)
		if err != nil {
			return nil, ErrFormatError(fmt.Sprintf(".tr: background image len: %s", err))
		}
		if bgLen < 0 {
			return nil, ErrFormatError(fmt.Sprintf(".tr: negative background image len %d", bgLen))
		}
		t.BackgroundPNG = make([]byte, bgLen)
		if _, err := io.ReadFull(r, t.BackgroundPNG); err != nil {
			return nil, ErrFormatError(fmt.Sprintf(".tr: background image: %s", err))
		}
	} else {
		frames, err := ReadThemeZt(r)
		if err != nil {
			return nil, err
		}
		t.AnimationFrames = frames
	}

	return t, nil
}

// WriteThemeTr serialises t as a .tr archive.
func WriteThemeTr(w io.Writer, t *ThemeTr) error {
	if _, err := w.Write(themeTrHeader[:]); err != nil {
		return err
	}
	if err := writeBool(w, t.ShowSystemInfo); err != nil {
		return err
	}
	if err := writeI32LE(w, int32(len(t.Overlays))); err != nil {
		return err
	}
	for _, o := range t.Overlays {
		if err := writeOverlayElement(w, o); err != nil {
			return err
		}
	}

	if err := writeBool(w, t.ShowBackground); err != nil {
		return err
	}
	if err := writeBool(w, t.ShowScreenshot); err != nil {
		return err
	}
	if err := writeI32LE(w, t.Direction); err != nil {
		return err
	}
	if err := writeI32LE(w, t.UIMode); err != nil {
		return err
	}
	if err := writeI32LE(w, t.Mode); err != nil {
		return err
	}
	if err := writeBool(w, t.HideScreenshotBg); err != nil {
		return err
	}
	for _, v := range t.ScreenshotRect {
		if err := writeI32LE(w, v); err != nil {
			return err
		}
	}
	if err := writeBool(w, t.ShowMask); err != nil {
		return err
	}
	for _, v := range t.MaskCenter {
		if err := writeI32LE(w, v); err != nil {
			return err
		}
	}

	var padding [themeTrPaddingSize]byte
	for i := range padding {
		padding[i] = 0xDC
	}
	if _, err := w.Write(padding[:]); err != nil {
		return err
	}

	if err := writeI32LE(w, int32(len(t.MaskImagePNG))); err != nil {
		return err
	}
	if len(t.MaskImagePNG) > 0 {
		if _, err := w.Write(t.MaskImagePNG); err != nil {
			return err
		}
	}

	if t.BackgroundMarker == 0 {
		if err := writeI32LE(w, 0); err != nil {
			return err
		}
		if err := writeI32LE(w, int32(len(t.BackgroundPNG))); err != nil {
			return err
		}
		if _, err := w.Write(t.BackgroundPNG); err != nil {
			return err
		}
		return nil
	}

	if err := writeI32LE(w, int32(len(t.AnimationFrames))); err != nil {
		return err
	}
	return WriteThemeZt(w, t.AnimationFrames)
}

func readOverlayElement(r io.Reader) (OverlayElement, error) {
	var o OverlayElement
	var err error

	fields := []*int32{&o.Mode, &o.ModeSub, &o.X, &o.Y, &o.MainCount, &o.SubCount}
	for _, f := range fields {
		if *f, err = readI32LE(r); err != nil {
			return o, err
		}
	}

	if o.FontName, err = read7BitString(r); err != nil {
		return o, err
	}

	var fontSizeBits [4]byte
	if _, err = io.ReadFull(r, fontSizeBits[:]); err != nil {
		return o, err
	}
	o.FontSize = float32FromBits(binary.LittleEndian.Uint32(fontSizeBits[:]))

	var styleBytes [3]byte
	if _, err = io.ReadFull(r, styleBytes[:]); err != nil {
		return o, err
	}
	o.FontStyle = styleBytes[0]
	// styleBytes[1] = font_unit, styleBytes[2] = gdi_charset; both
	// fixed constants on write, preserved verbatim on read via FontStyle
	// only (font_unit/gdi_charset are not round-tripped as distinct
	// fields since every producer emits the same two constants).

	var colour [4]byte
	if _, err = io.ReadFull(r, colour[:]); err != nil {
		return o, err
	}
	o.ColourA, o.ColourR, o.ColourG, o.ColourB = colour[0], colour[1], colour[2], colour[3]

	if o.Text, err = read7BitString(r); err != nil {
		return o, err
	}

	return o, nil
}

func writeOverlayElement(w io.Writer, o OverlayElement) error {
	fields := []int32{o.Mode, o.ModeSub, o.X, o.Y, o.MainCount, o.SubCount}
	for _, f := range fields {
		if err := writeI32LE(w, f); err != nil {
			return err
		}
	}

	if err := write7BitString(w, o.FontName); err != nil {
		return err
	}

	var fontSizeBits [4]byte
	binary.LittleEndian.PutUint32(fontSizeBits[:], float32ToBits(o.FontSize))
	if _, err := w.Write(fontSizeBits[:]); err != nil {
		return err
	}

	if _, err := w.Write([]byte{o.FontStyle, themeTrFontUnit, themeTrGdiCharset}); err != nil {
		return err
	}

	if _, err := w.Write([]byte{o.ColourA, o.ColourR, o.ColourG, o.ColourB}); err != nil {
		return err
	}

	return write7BitString(w, o.Text)
}

// read7BitString reads a length-prefixed string using the 7-bit
// continuation-byte length encoding: each length byte has its high
// bit set except the last, and the low 7 bits of each byte contribute
// progressively higher-order bits of the total length.
func read7BitString(r io.Reader) (string, error) {
	var length uint32
	var shift uint
	var b [1]byte

	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", err
		}

		length |= uint32(b[0]&0x7F) << shift
		if b[0]&0x80 == 0 {
			break
		}
		shift += 7
	}

	if length == 0 {
		return "", nil
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}

	return string(buf), nil
}

// write7BitString writes s using the 7-bit continuation-byte length
// prefix, then its raw bytes.
func write7BitString(w io.Writer, s string) error {
	length := uint32(len(s))

	for {
		b := byte(length & 0x7F)
		length >>= 7
		if length != 0 {
			b |= 0x80
		}
		if _, err := w.Write([]byte{b}); err != nil {
			return err
		}
		if length == 0 {
			break
		}
	}

	_, err := w.Write([]byte(s))
	return err
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func writeBool(w io.Writer, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

func float32FromBits(bits uint32) float32 {
	return math.Float32frombits(bits)
}

func float32ToBits(f float32) uint32 {
	return math.Float32bits(f)
}
