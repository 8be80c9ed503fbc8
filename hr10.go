/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * HR10 LED temperature daemon (L7): a periodic loop reading a drive
 * temperature sensor, mapping it to a banded gradient colour with a
 * breathing brightness envelope, and rendering the result to a
 * 7-segment-like LED style via the shared LED pipeline.
 */

package main

import (
	"context"
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/shirou/gopsutil/v3/host"
)

// hr10Band is one (temperature threshold, colour) control point of the
// banded gradient; bands must be sorted ascending by TempC.
type hr10Band struct {
	TempC float64
	Color colorful.Color
}

// hr10DefaultBands is the default temperature->colour gradient: cool
// blue at or below 30C, rising through green/yellow to red at or
// above 75C.
var hr10DefaultBands = []hr10Band{
	{TempC: 30, Color: colorful.Color{R: 0.2, G: 0.4, B: 1.0}},
	{TempC: 45, Color: colorful.Color{R: 0.2, G: 0.9, B: 0.3}},
	{TempC: 60, Color: colorful.Color{R: 0.95, G: 0.85, B: 0.1}},
	{TempC: 75, Color: colorful.Color{R: 1.0, G: 0.15, B: 0.1}},
}

// hr10BreathingPeriod is the period of the optional breathing
// brightness envelope.
const hr10BreathingPeriod = 3 * time.Second

// hr10MinBrightness is the envelope's trough brightness (0..1).
const hr10MinBrightness = 0.35

// SensorReader abstracts the temperature source so HR10 can be tested
// without a real NVMe/CPU sensor present.
type SensorReader interface {
	ReadTempC(ctx context.Context) (float64, error)
}

// gopsutilSensorReader reads the warmest reported drive/CPU sensor via
// gopsutil's host.SensorsTemperatures.
type gopsutilSensorReader struct{}

func (gopsutilSensorReader) ReadTempC(ctx context.Context) (float64, error) {
	stats, err := host.SensorsTemperatures()
	if err != nil {
		return 0, err
	}
	if len(stats) == 0 {
		return 0, ErrProtocolError("", "no sensors reported by host")
	}

	max := stats[0].Temperature
	for _, s := range stats[1:] {
		if s.Temperature > max {
			max = s.Temperature
		}
	}
	return max, nil
}

// hr10Colour maps a Celsius reading to a colour via piecewise HCL
// interpolation across hr10DefaultBands, clamped at both ends.
func hr10Colour(tempC float64, bands []hr10Band) colorful.Color {
	if tempC <= bands[0].TempC {
		return bands[0].Color
	}
	last := bands[len(bands)-1]
	if tempC >= last.TempC {
		return last.Color
	}

	for i := 0; i < len(bands)-1; i++ {
		lo, hi := bands[i], bands[i+1]
		if tempC >= lo.TempC && tempC <= hi.TempC {
			t := (tempC - lo.TempC) / (hi.TempC - lo.TempC)
			return lo.Color.BlendHcl(hi.Color, t).Clamped()
		}
	}

	return last.Color
}

// hr10Breathe returns the brightness multiplier (hr10MinBrightness..1)
// at time t, a sinusoidal envelope with period hr10BreathingPeriod.
func hr10Breathe(t time.Time) float64 {
	phase := float64(t.UnixNano()%int64(hr10BreathingPeriod)) / float64(hr10BreathingPeriod)
	s := (math.Sin(2*math.Pi*phase) + 1) / 2
	return hr10MinBrightness + (1-hr10MinBrightness)*s
}

// HR10Daemon periodically reads a temperature sensor and renders it
// to an LED-style device. After FailureThreshold consecutive read
// failures, Run returns a non-nil error (the caller is expected to
// exit non-zero).
type HR10Daemon struct {
	Sensor           SensorReader
	Sender           *Sender
	Style            LedDeviceStyle
	Tick             time.Duration
	FailureThreshold uint
	Breathing        bool

	store    *StateStore
	stateKey string
}

// NewHR10Daemon creates a daemon driving sender, persisting its
// failure counter under key in store.
func NewHR10Daemon(sender *Sender, style LedDeviceStyle, store *StateStore, key string) *HR10Daemon {
	return &HR10Daemon{
		Sensor:           gopsutilSensorReader{},
		Sender:           sender,
		Style:            style,
		Tick:             Conf.HR10Tick,
		FailureThreshold: Conf.HR10FailureThreshold,
		Breathing:        true,
		store:            store,
		stateKey:         key,
	}
}

// Run blocks, rendering one frame per tick, until ctx is cancelled or
// the consecutive-failure threshold is reached.
func (d *HR10Daemon) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.Tick)
	defer ticker.Stop()

	lastTemp := 0.0
	haveTemp := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case now := <-ticker.C:
			temp, err := d.Sensor.ReadTempC(ctx)
			if err != nil {
				count := d.store.IncrHR10Failure(d.stateKey)
				Log.Debug('!', "hr10: sensor read failed (%d/%d): %s",
					count, d.FailureThreshold, err)

				if count >= uint(d.FailureThreshold) {
					return ErrProtocolError(d.stateKey, "too many consecutive sensor failures")
				}

				if !haveTemp {
					continue
				}
				temp = lastTemp
			} else {
				d.store.ResetHR10Failure(d.stateKey)
				lastTemp = temp
				haveTemp = true
			}

			colour := hr10Colour(temp, hr10DefaultBands)
			brightness := 1.0
			if d.Breathing {
				brightness = hr10Breathe(now)
			}

			r, g, b := colour.RGB255()
			job := ledSegmentFrame(
				scaleChannel(r, brightness),
				scaleChannel(g, brightness),
				scaleChannel(b, brightness),
				d.Style,
			)

			if err := d.Sender.SendFrame(job); err != nil {
				Log.Debug('!', "hr10: send_frame failed: %s", err)
			}
		}
	}
}

// scaleChannel scales an 8-bit colour channel by factor (0..1).
func scaleChannel(c uint8, factor float64) uint8 {
	v := float64(c) * factor
	if v > 255 {
		v = 255
	}
	return uint8(v)
}
