/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 */

package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

// fakeProtocol is an in-memory Protocol recording every submitted frame.
type fakeProtocol struct {
	sendErr error
	sent    []FrameJob
	closed  bool
}

func (f *fakeProtocol) Handshake() (HandshakeResult, error) { return HandshakeResult{}, nil }

func (f *fakeProtocol) SendFrame(job FrameJob) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, job)
	return nil
}

func (f *fakeProtocol) Close() error {
	f.closed = true
	return nil
}

// fakeSensor reports a scripted sequence of temperatures/errors, one
// per ReadTempC call, holding the last entry once exhausted.
type fakeSensor struct {
	readings []float64
	errs     []error
	i        int
}

func (f *fakeSensor) ReadTempC(ctx context.Context) (float64, error) {
	idx := f.i
	if idx >= len(f.readings) {
		idx = len(f.readings) - 1
	}
	f.i++

	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	return f.readings[idx], err
}

func openTestStateStore(t *testing.T) *StateStore {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "state.db"), 0644, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPanelProfiles, bucketHR10Failures} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	return &StateStore{db: db}
}

func TestHr10ColourClampsAtEnds(t *testing.T) {
	bands := hr10DefaultBands

	assert.Equal(t, bands[0].Color, hr10Colour(-10, bands))
	assert.Equal(t, bands[len(bands)-1].Color, hr10Colour(1000, bands))
}

func TestHr10ColourInterpolatesBetweenBands(t *testing.T) {
	bands := []hr10Band{
		{TempC: 0, Color: colorful.Color{R: 0, G: 0, B: 0}},
		{TempC: 100, Color: colorful.Color{R: 1, G: 1, B: 1}},
	}

	mid := hr10Colour(50, bands)
	assert.Greater(t, mid.R, 0.0)
	assert.Less(t, mid.R, 1.0)
}

func TestHr10BreatheStaysWithinRange(t *testing.T) {
	for i := 0; i < 20; i++ {
		ts := time.Unix(0, int64(i)*int64(hr10BreathingPeriod)/20)
		b := hr10Breathe(ts)
		assert.GreaterOrEqual(t, b, hr10MinBrightness)
		assert.LessOrEqual(t, b, 1.0)
	}
}

func TestScaleChannelClampsAt255(t *testing.T) {
	assert.Equal(t, uint8(255), scaleChannel(200, 2.0))
	assert.Equal(t, uint8(50), scaleChannel(100, 0.5))
}

func TestHR10DaemonSendsFramesOnEachTick(t *testing.T) {
	store := openTestStateStore(t)
	defer store.Close()

	proto := &fakeProtocol{}
	sender := &Sender{desc: DeviceDescriptor{BusPath: "1-1"}, proto: proto}
	style := ledStyleDefault(0)

	daemon := &HR10Daemon{
		Sensor:           &fakeSensor{readings: []float64{40, 50, 60}},
		Sender:           sender,
		Style:            style,
		Tick:             5 * time.Millisecond,
		FailureThreshold: 3,
		store:            store,
		stateKey:         "test-key",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	err := daemon.Run(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, proto.sent, "Run() sent no frames before the context expired")
	for _, job := range proto.sent {
		assert.Equal(t, PixelFormatLedSegments, job.PixelFormat)
	}
}

func TestHR10DaemonExitsAfterFailureThreshold(t *testing.T) {
	store := openTestStateStore(t)
	defer store.Close()

	proto := &fakeProtocol{}
	sender := &Sender{desc: DeviceDescriptor{BusPath: "1-2"}, proto: proto}

	sensErr := errors.New("sensor unavailable")
	daemon := &HR10Daemon{
		Sensor:           &fakeSensor{readings: []float64{0}, errs: []error{sensErr}},
		Sender:           sender,
		Style:            ledStyleDefault(0),
		Tick:             2 * time.Millisecond,
		FailureThreshold: 2,
		store:            store,
		stateKey:         "failing-device",
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := daemon.Run(ctx)
	require.True(t, IsTag(err, TagProtocolError), "Run() error = %v, want a ProtocolError after exhausting the failure threshold", err)
}
