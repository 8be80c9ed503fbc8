/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Shared capability pipeline (L3): pm_to_fbl / fbl_to_resolution are
 * the single source of truth for panel geometry and must be reused,
 * verbatim, by every protocol handler.
 */

package main

// Protocol is the contract every L3 handler implements.
type Protocol interface {
	// Handshake performs the device-specific handshake sequence and
	// returns the resulting HandshakeResult, or an error tagged
	// HandshakeFailed / WireIoTimeout.
	Handshake() (HandshakeResult, error)

	// SendFrame encodes job onto the wire, per the device's framing
	// rules. Returns a transient error (ProtocolError, WireIoTimeout)
	// on a per-frame failure; the sender stays open.
	SendFrame(job FrameJob) error

	// Close releases the underlying transport.
	Close() error
}

// fblUnknown is the FBL code used when PM falls outside the known
// domain; it resolves to the 480x480 fallback profile.
const fblUnknown = 72

// pmSub identifies a (PM, SUB) pair in the handshake tables.
type pmSub struct {
	pm, sub uint32
}

// pmToFBLTable maps the known PM domain (plus PM=1's two SUB variants)
// to their FBL code. Unknown PM values are not present here; callers
// must treat a missing entry as fblUnknown and MUST NOT guess beyond
// that per spec's redesigned bulk-fallback behaviour.
var pmToFBLTable = map[pmSub]uint32{
	{pm: 1, sub: 48}: 90,
	{pm: 1, sub: 49}: 91,
	{pm: 5}:          51,
	{pm: 7}:          53,
	{pm: 9}:          60,
	{pm: 10}:         61,
	{pm: 11}:         62,
	{pm: 12}:         63,
	{pm: 32}:         70,
	{pm: 64}:         80,
	{pm: 65}:         81,
}

// fblToResolutionTable maps each known FBL code to its panel
// resolution. FBL 51 and 53 are the two SPI-mode-2, 320x320 panels
// for which the RGB565 endianness law selects big-endian encoding.
var fblToResolutionTable = map[uint32]Resolution{
	51: {320, 320},
	53: {320, 320},
	60: {240, 240},
	61: {240, 240},
	62: {280, 280},
	63: {280, 280},
	70: {480, 480},
	80: {800, 480},
	81: {800, 480},
	90: {128, 128},
	91: {160, 160},
	fblUnknown: {480, 480},
}

// pmToFBL maps (pm, sub) to its FBL code. Per spec, an unknown PM must
// not be guessed at: it returns (fblUnknown, false), and it is the
// caller's responsibility to decide whether to fall back to the
// 480x480 default profile or refuse the device outright.
func pmToFBL(pm, sub uint32) (fbl uint32, known bool) {
	if fbl, ok := pmToFBLTable[pmSub{pm: pm, sub: sub}]; ok {
		return fbl, true
	}

	if fbl, ok := pmToFBLTable[pmSub{pm: pm}]; ok {
		return fbl, true
	}

	return fblUnknown, false
}

// fblToResolution maps an FBL code (and, for diagnostics, the PM it
// came from) to a panel resolution. Unknown FBL codes yield 480x480.
func fblToResolution(fbl, pm uint32) Resolution {
	if res, ok := fblToResolutionTable[fbl]; ok {
		return res
	}

	return Resolution{480, 480}
}

// isBigEndianFBL reports whether FBL selects SPI mode 2, the only
// case in which RGB565 is packed big-endian.
func isBigEndianFBL(fbl uint32) bool {
	return fbl == 51 || fbl == 53
}

// rgb565Endianness implements the RGB565 endianness law: big-endian
// iff the panel is 320x320 and FBL is 51 or 53; little-endian
// otherwise.
func rgb565Endianness(res Resolution, fbl uint32) PixelFormat {
	if res.Width == 320 && res.Height == 320 && isBigEndianFBL(fbl) {
		return PixelFormatRGB565BE
	}

	return PixelFormatRGB565LE
}
