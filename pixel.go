/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Pixel & frame pipeline (L5): encodes an RGB image into the wire
 * format a PanelProfile or LedDeviceStyle requires. Callers are
 * responsible for resizing/rotating to panel geometry; this pipeline
 * never resamples.
 */

package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
)

// jpegQuality is the re-compression quality used for JPEG-encoded
// frames (spec.md §4.5: "quality ≈ 75").
const jpegQuality = 75

// encode converts img into a FrameJob matching profile's pixel format
// and geometry. img must already be sized to profile.Width x
// profile.Height.
func encode(img image.Image, profile PanelProfile) (FrameJob, error) {
	b := img.Bounds()
	if b.Dx() != profile.Width || b.Dy() != profile.Height {
		return FrameJob{}, ErrProtocolError("",
			fmt.Sprintf("image size %dx%d != panel %dx%d",
				b.Dx(), b.Dy(), profile.Width, profile.Height))
	}

	switch profile.PixelFormat {
	case PixelFormatRGB565BE, PixelFormatRGB565LE:
		return encodeRGB565(img, profile)

	case PixelFormatJPEG:
		return encodeJPEG(img, profile)

	default:
		return FrameJob{}, ErrProtocolError("",
			fmt.Sprintf("pixel format %s is not a raster format", profile.PixelFormat))
	}
}

// solidColour builds a FrameJob of a single flat colour, sized to w x h,
// in profile's pixel format. Used for blank-screen and diagnostic frames.
func solidColour(r, g, b uint8, w, h int, profile PanelProfile) (FrameJob, error) {
	switch profile.PixelFormat {
	case PixelFormatRGB565BE, PixelFormatRGB565LE:
		px := packRGB565(r, g, b)
		out := make([]byte, w*h*2)
		for i := 0; i < w*h; i++ {
			putRGB565(out[i*2:i*2+2], px, profile.PixelFormat == PixelFormatRGB565BE)
		}
		return FrameJob{Bytes: out, Width: w, Height: h, PixelFormat: profile.PixelFormat}, nil

	case PixelFormatJPEG:
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		fillRGBA(img, r, g, b)
		return encodeJPEG(img, profile)

	default:
		return FrameJob{}, ErrProtocolError("",
			fmt.Sprintf("pixel format %s has no solid-colour rendering", profile.PixelFormat))
	}
}

// packRGB565 packs one RGB triple per the fixed truncation rule:
// ((r&0xF8)<<8) | ((g&0xFC)<<3) | (b>>3).
func packRGB565(r, g, b uint8) uint16 {
	return (uint16(r&0xF8) << 8) | (uint16(g&0xFC) << 3) | uint16(b>>3)
}

// putRGB565 writes a packed RGB565 pixel into dst (len(dst) == 2), in
// big-endian or little-endian order.
func putRGB565(dst []byte, px uint16, bigEndian bool) {
	if bigEndian {
		binary.BigEndian.PutUint16(dst, px)
	} else {
		binary.LittleEndian.PutUint16(dst, px)
	}
}

// encodeRGB565 packs every pixel of img row-major into profile's
// chosen endianness. Output length is exactly w*h*2.
func encodeRGB565(img image.Image, profile PanelProfile) (FrameJob, error) {
	bigEndian := profile.PixelFormat == PixelFormatRGB565BE

	b := img.Bounds()
	out := make([]byte, profile.Width*profile.Height*2)

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			px := packRGB565(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			putRGB565(out[i*2:i*2+2], px, bigEndian)
			i++
		}
	}

	return FrameJob{
		Bytes:       out,
		Width:       profile.Width,
		Height:      profile.Height,
		PixelFormat: profile.PixelFormat,
	}, nil
}

// encodeJPEG re-compresses img at jpegQuality.
func encodeJPEG(img image.Image, profile PanelProfile) (FrameJob, error) {
	var buf bytes.Buffer

	err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	if err != nil {
		return FrameJob{}, ErrProtocolError("", fmt.Sprintf("jpeg encode: %s", err))
	}

	return FrameJob{
		Bytes:       buf.Bytes(),
		Width:       profile.Width,
		Height:      profile.Height,
		PixelFormat: PixelFormatJPEG,
	}, nil
}

// fillRGBA fills img with a flat (r,g,b,255) colour.
func fillRGBA(img *image.RGBA, r, g, b uint8) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			off := img.PixOffset(x, y)
			img.Pix[off+0] = r
			img.Pix[off+1] = g
			img.Pix[off+2] = b
			img.Pix[off+3] = 255
		}
	}
}

// ledSegmentFrame maps a single flat colour to the per-segment colour
// vector for style: every addressable LED gets the same (r,g,b)
// triple. Used for status indication; animation drivers build their
// own per-LED vectors directly.
func ledSegmentFrame(r, g, b uint8, style LedDeviceStyle) FrameJob {
	out := make([]byte, style.TotalLEDs*3)
	for i := 0; i < style.TotalLEDs; i++ {
		out[i*3+0] = r
		out[i*3+1] = g
		out[i*3+2] = b
	}

	return FrameJob{
		Bytes:       out,
		PixelFormat: PixelFormatLedSegments,
	}
}
