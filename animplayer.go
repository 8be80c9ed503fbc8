/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Animation playback and GIF import. AnimationPlayer walks a decoded
 * Theme.zt frame set and hands frames to the pixel pipeline one at a
 * time; ImportGIFAsTheme re-encodes a GIF's frames into the same
 * container so it can drive the identical playback path.
 */

package main

import (
	"image"
	"image/gif"
	"io"
)

// ImportGIFAsTheme decodes a GIF from r and re-encodes every frame as
// JPEG, yielding the same []ThemeZtFrame a Theme.zt reader would.
// GIF delays are honoured. Of the disposal methods only
// DisposalBackground is applied, by clearing the whole canvas;
// DisposalPrevious is handled like DisposalNone. Frames are flattened
// against a single full-size canvas so each output frame is
// self-contained.
func ImportGIFAsTheme(r io.Reader, profile PanelProfile) ([]ThemeZtFrame, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, ErrFormatError("gif: " + err.Error())
	}

	bounds := g.Image[0].Bounds()
	canvas := image.NewRGBA(bounds)

	frames := make([]ThemeZtFrame, len(g.Image))
	for i, frame := range g.Image {
		drawOver(canvas, frame)

		job, err := encodeJPEG(canvas, PanelProfile{
			Width:       bounds.Dx(),
			Height:      bounds.Dy(),
			PixelFormat: PixelFormatJPEG,
		})
		if err != nil {
			return nil, err
		}

		delay := int32(g.Delay[i] * 10) // GIF delay unit is 1/100s
		if delay < 1 {
			delay = 1
		}

		frames[i] = ThemeZtFrame{JPEG: job.Bytes, DelayMs: delay}

		if i < len(g.Disposal) && g.Disposal[i] == gif.DisposalBackground {
			canvas = image.NewRGBA(bounds)
		}
	}

	return frames, nil
}

// drawOver paints src onto dst at src's own offset, without alpha
// blending; GIF frames are opaque within their own bounds for the
// purposes of this importer.
func drawOver(dst *image.RGBA, src *image.Paletted) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := src.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			off := dst.PixOffset(x, y)
			dst.Pix[off+0] = uint8(r >> 8)
			dst.Pix[off+1] = uint8(g >> 8)
			dst.Pix[off+2] = uint8(bl >> 8)
			dst.Pix[off+3] = 0xff
		}
	}
}

// AnimationPlayer walks a decoded frame set (from Theme.zt or a GIF
// import), exposing the start/stop/loop controls the device pipeline
// needs to turn a static container into a steady stream of frames.
type AnimationPlayer struct {
	frames  []ThemeZtFrame
	current int
	playing bool
	loop    bool
}

// NewAnimationPlayer creates a player over frames, looping by default.
func NewAnimationPlayer(frames []ThemeZtFrame) *AnimationPlayer {
	return &AnimationPlayer{frames: frames, loop: true}
}

// Play marks the player as running; CurrentFrame/NextFrame remain
// callable regardless of this flag, which only reflects caller intent.
func (p *AnimationPlayer) Play() { p.playing = true }

// Pause marks the player as stopped without resetting position.
func (p *AnimationPlayer) Pause() { p.playing = false }

// Stop pauses and resets to the first frame.
func (p *AnimationPlayer) Stop() {
	p.playing = false
	p.current = 0
}

// Reset returns to the first frame without changing play state.
func (p *AnimationPlayer) Reset() { p.current = 0 }

// IsPlaying reports the last Play/Pause/Stop call's intent.
func (p *AnimationPlayer) IsPlaying() bool { return p.playing }

// SetLoop controls whether NextFrame wraps past the last frame.
func (p *AnimationPlayer) SetLoop(loop bool) { p.loop = loop }

// CurrentFrame returns the frame at the current position, or the
// zero value if the player holds no frames.
func (p *AnimationPlayer) CurrentFrame() (ThemeZtFrame, bool) {
	if len(p.frames) == 0 {
		return ThemeZtFrame{}, false
	}
	if p.current < 0 || p.current >= len(p.frames) {
		return p.frames[0], true
	}
	return p.frames[p.current], true
}

// NextFrame advances the position and returns the new current frame.
// At the last frame: loops to 0 if SetLoop(true) (the default),
// otherwise holds on the last frame and calls Pause.
func (p *AnimationPlayer) NextFrame() (ThemeZtFrame, bool) {
	if len(p.frames) == 0 {
		return ThemeZtFrame{}, false
	}

	p.current++
	if p.current >= len(p.frames) {
		if p.loop {
			p.current = 0
		} else {
			p.current = len(p.frames) - 1
			p.playing = false
		}
	}

	return p.CurrentFrame()
}

// FrameCount returns the number of frames the player holds.
func (p *AnimationPlayer) FrameCount() int { return len(p.frames) }
