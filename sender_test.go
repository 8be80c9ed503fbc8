/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 */

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scsiDesc(busPath string) DeviceDescriptor {
	return DeviceDescriptor{
		Vid: 0x0483, Pid: 0x5750,
		BusPath:             busPath,
		ImplementationKey:   ImplScsiLCD,
		PixelTransport:      TransportScsi,
		DeviceFamilyID:      1,
		ScsiPassThroughNode: "/dev/sg1",
	}
}

func TestNewSenderUnsupportedImplementation(t *testing.T) {
	desc := DeviceDescriptor{ImplementationKey: ImplementationKey(99)}
	_, err := newSender(desc, nil, &fakeScsiExecutor{}, nil)
	assert.True(t, IsTag(err, TagUnsupportedDevice))
}

func TestNewSenderHandshakeFailurePropagates(t *testing.T) {
	exec := &fakeScsiExecutor{pollResp: nil}
	_, err := newSender(scsiDesc("1-1"), nil, exec, nil)
	assert.True(t, IsTag(err, TagHandshakeFailed))
}

func TestSenderCacheGetSenderCachesAndReuses(t *testing.T) {
	exec := &fakeScsiExecutor{pollResp: []byte{0x01}}
	cache := NewSenderCache(exec, nil)
	defer cache.CloseAll()

	desc := scsiDesc("1-1")

	s1, err := cache.GetSender(desc, nil)
	require.NoError(t, err)
	s2, err := cache.GetSender(desc, nil)
	require.NoError(t, err)

	assert.Same(t, s1, s2, "GetSender() must return the same instance for the same device key")
	assert.Equal(t, 1, cache.CachedCount())
}

func TestSenderCacheDistinctKeysDistinctSenders(t *testing.T) {
	exec := &fakeScsiExecutor{pollResp: []byte{0x01}}
	cache := NewSenderCache(exec, nil)
	defer cache.CloseAll()

	s1, err := cache.GetSender(scsiDesc("1-1"), nil)
	require.NoError(t, err)
	s2, err := cache.GetSender(scsiDesc("1-2"), nil)
	require.NoError(t, err)

	assert.NotSame(t, s1, s2)
	assert.Equal(t, 2, cache.CachedCount())
}

func TestSenderCacheRemoveSenderEvicts(t *testing.T) {
	exec := &fakeScsiExecutor{pollResp: []byte{0x01}}
	cache := NewSenderCache(exec, nil)
	defer cache.CloseAll()

	desc := scsiDesc("1-1")
	_, err := cache.GetSender(desc, nil)
	require.NoError(t, err)

	cache.RemoveSender(desc)
	assert.Equal(t, 0, cache.CachedCount())

	// RemoveSender on an absent key must not panic.
	assert.NotPanics(t, func() { cache.RemoveSender(desc) })
}

func TestSenderCacheSendFrameKeepsSenderOnProtocolError(t *testing.T) {
	exec := &fakeScsiExecutor{pollResp: []byte{0x01}}
	cache := NewSenderCache(exec, nil)
	defer cache.CloseAll()

	desc := scsiDesc("1-1")
	_, err := cache.GetSender(desc, nil)
	require.NoError(t, err)

	job := FrameJob{Bytes: make([]byte, 320*320*2+1)}
	err = cache.SendFrame(desc, nil, job)
	require.True(t, IsTag(err, TagProtocolError))

	// ProtocolError (oversized frame) is not an eviction trigger: the
	// sender must still be cached.
	assert.Equal(t, 1, cache.CachedCount())
}

func TestSenderCacheSendFrameSuccess(t *testing.T) {
	exec := &fakeScsiExecutor{pollResp: []byte{0x01}}
	cache := NewSenderCache(exec, nil)
	defer cache.CloseAll()

	desc := scsiDesc("1-1")
	job := FrameJob{Bytes: make([]byte, 320*320*2)}
	assert.NoError(t, cache.SendFrame(desc, nil, job))
	assert.Len(t, exec.writes, 4)
}

func TestNewSenderPersistsPanelProfileOnSuccess(t *testing.T) {
	store := openTestStateStore(t)
	defer store.Close()

	exec := &fakeScsiExecutor{pollResp: []byte{0x01}}
	desc := scsiDesc("1-1")

	_, err := newSender(desc, nil, exec, store)
	require.NoError(t, err)

	profile, ok := store.LoadPanelProfile(desc.Key())
	require.True(t, ok, "LoadPanelProfile() after a successful handshake, want a saved profile")
	assert.Equal(t, 320, profile.Width)
	assert.Equal(t, 320, profile.Height)
	assert.Equal(t, uint32(desc.DeviceFamilyID), profile.ModelID)
}

func TestHidHandshakeReusesCachedProfileOnIdentityMatch(t *testing.T) {
	store := openTestStateStore(t)
	defer store.Close()

	desc := DeviceDescriptor{BusPath: "3-1"}
	require.NoError(t, store.SavePanelProfile(desc.Key(), PanelProfile{
		Width: 999, Height: 888,
		PixelFormat: PixelFormatRGB565LE,
		ModelID:     5,
		Serial:      "SN12345",
	}))

	tr := &fakeTransport{readResp: hidResponse(5, 0, "SN12345")}
	cached, ok := store.LoadPanelProfile(desc.Key())
	require.True(t, ok)

	proto := NewHidProtocol(desc, tr, &cached)
	result, err := proto.Handshake()
	require.NoError(t, err)

	assert.Equal(t, 999, result.Resolution.Width, "Handshake() must trust the matching cached profile over pmToFBL")
	assert.Equal(t, 888, result.Resolution.Height)
	assert.Equal(t, PixelFormatRGB565LE, result.PixelFormat)
}

func TestHidHandshakeIgnoresCachedProfileOnSerialMismatch(t *testing.T) {
	desc := DeviceDescriptor{BusPath: "3-2"}
	hint := PanelProfile{Width: 999, Height: 888, ModelID: 5, Serial: "OLD-SERIAL"}

	tr := &fakeTransport{readResp: hidResponse(5, 0, "NEW-SERIAL")}
	proto := NewHidProtocol(desc, tr, &hint)

	result, err := proto.Handshake()
	require.NoError(t, err)

	assert.Equal(t, 320, result.Resolution.Width, "a serial mismatch must fall back to the live pmToFBL derivation")
	assert.Equal(t, 320, result.Resolution.Height)
}

func TestSenderResultReflectsHandshake(t *testing.T) {
	exec := &fakeScsiExecutor{pollResp: []byte{0x01}}
	s, err := newSender(scsiDesc("1-1"), nil, exec, nil)
	require.NoError(t, err)
	defer s.Close()

	result := s.Result()
	assert.True(t, result.HasResolution)
	assert.Equal(t, 320, result.Resolution.Width)
}
