/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Common errors
 */

package main

import (
	"errors"
	"fmt"
)

// Error taxonomy raised by the core (spec.md §7). Each carries a stable
// machine-readable Tag and formats a human-readable message that includes
// (vid,pid,bus_path) when applicable.
type CoreError struct {
	Tag     string // machine-readable error tag
	Device  string // canonical (vid,pid,bus_path) key, may be empty
	Message string // human-readable description
}

func (e *CoreError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("%s: %s", e.Tag, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Tag, e.Device, e.Message)
}

// newCoreError constructs a CoreError for the given tag
func newCoreError(tag, device, format string, args ...interface{}) *CoreError {
	return &CoreError{
		Tag:     tag,
		Device:  device,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error tags, see spec.md §7
const (
	TagDeviceNotFound     = "DeviceNotFound"
	TagTransportOpenFailed = "TransportOpenFailed"
	TagHandshakeFailed    = "HandshakeFailed"
	TagWireIoTimeout      = "WireIoTimeout"
	TagProtocolError      = "ProtocolError"
	TagFormatError        = "FormatError"
	TagUnsupportedDevice  = "UnsupportedDevice"
)

func ErrDeviceNotFound(selector string) error {
	return newCoreError(TagDeviceNotFound, "", "no device matched selector %q", selector)
}

func ErrTransportOpenFailed(device string, cause error) error {
	return newCoreError(TagTransportOpenFailed, device, "open failed: %s", cause)
}

func ErrHandshakeFailed(device string, reason string) error {
	return newCoreError(TagHandshakeFailed, device, "handshake failed: %s", reason)
}

func ErrWireIoTimeout(device string, op string) error {
	return newCoreError(TagWireIoTimeout, device, "%s exceeded deadline", op)
}

func ErrProtocolError(device string, reason string) error {
	return newCoreError(TagProtocolError, device, "%s", reason)
}

func ErrFormatError(reason string) error {
	return newCoreError(TagFormatError, "", "%s", reason)
}

func ErrUnsupportedDevice(vid, pid uint16) error {
	return newCoreError(TagUnsupportedDevice, "", "%4.4x:%4.4x is not a recognised device", vid, pid)
}

// IsTag reports whether err is a *CoreError carrying the given tag
func IsTag(err error, tag string) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Tag == tag
	}
	return false
}

// Error values not tied to a specific device/selector
var (
	ErrLockIsBusy = errors.New("lock is busy")
	ErrShutdown   = errors.New("shutdown requested")
	ErrNoDaemon   = errors.New("lcdctl daemon not running")
	ErrAccess     = errors.New("access denied")
)
