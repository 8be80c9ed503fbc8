/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * PnP manager (L1 runtime loop): keeps the sender cache and the
 * capability-probe status table in sync with physically attached
 * devices. discover() is polled at Conf.DiscoveryPollInterval; a
 * udev hotplug event, when available, only triggers an extra
 * discover() call rather than replacing the poll.
 */

package main

import (
	"context"
	"time"

	"github.com/jochenvg/go-udev"
)

// PnPManager owns the runtime device list and drives SenderCache and
// the status table from it.
type PnPManager struct {
	cache *SenderCache
	known map[string]DeviceDescriptor
}

// NewPnPManager creates a manager driving cache.
func NewPnPManager(cache *SenderCache) *PnPManager {
	return &PnPManager{
		cache: cache,
		known: make(map[string]DeviceDescriptor),
	}
}

// Run blocks, rescanning on every poll tick and every udev hotplug
// signal, until ctx is cancelled.
func (m *PnPManager) Run(ctx context.Context) error {
	rescan := make(chan struct{}, 1)
	go m.watchHotplug(ctx, rescan)

	ticker := time.NewTicker(Conf.DiscoveryPollInterval)
	defer ticker.Stop()

	m.rescan()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			m.rescan()

		case <-rescan:
			m.rescan()
		}
	}
}

// rescan runs discover() once, diffs the result against the
// previously known device list, and updates the sender cache and the
// status table accordingly.
func (m *PnPManager) rescan() {
	current := discover()
	seen := make(map[string]bool, len(current))

	for _, d := range current {
		key := d.Key()
		seen[key] = true

		if _, ok := m.known[key]; !ok {
			Log.Info('+', "pnp: %s: attached", d)
		}
		m.known[key] = d

		StatusSet(key, m.probe(d))
	}

	for key, d := range m.known {
		if !seen[key] {
			Log.Info('-', "pnp: %s: detached", d)
			delete(m.known, key)
			m.cache.RemoveSender(d)
			StatusDel(key)
		}
	}
}

// probe resolves (or reuses) a sender for d and renders its
// capability-probe record.
func (m *PnPManager) probe(d DeviceDescriptor) DeviceStatus {
	status := DeviceStatus{
		Vid:       d.Vid,
		Pid:       d.Pid,
		Vendor:    d.VendorName,
		Product:   d.ProductName,
		BusPath:   d.BusPath,
		Transport: d.PixelTransport.String(),
		Family:    d.DeviceFamilyID,
	}

	quirks := NewQuirks()
	quirks.PullByHWID(Conf.Quirks, d.Vid, d.Pid)

	sender, err := m.cache.GetSender(d, quirks)
	if err != nil {
		Log.Debug('!', "pnp: %s: handshake failed: %s", d, err)
		return status
	}

	status.HandshakeOK = true

	result := sender.Result()
	status.ModelID = result.ModelID
	status.SerialPrefix16 = serialPrefix16(result.Serial)
	if result.HasResolution {
		status.ResolutionW = result.Resolution.Width
		status.ResolutionH = result.Resolution.Height
	}

	return status
}

// serialPrefix16 truncates a device-reported serial to at most 16
// characters, the length the capability-probe report carries.
func serialPrefix16(s string) string {
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

// watchHotplug sends to rescan on every udev "usb" subsystem event. If
// the netlink monitor can't be set up (no permission, no udev on this
// host), it quietly gives up: polling alone keeps driving rescans.
func (m *PnPManager) watchHotplug(ctx context.Context, rescan chan<- struct{}) {
	defer func() { recover() }()

	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if mon == nil {
		return
	}

	if err := mon.FilterAddMatchSubsystem("usb"); err != nil {
		Log.Debug(' ', "pnp: udev filter: %s", err)
		return
	}

	devCh, err := mon.DeviceChan(ctx)
	if err != nil {
		Log.Debug(' ', "pnp: udev monitor: %s", err)
		return
	}

	for range devCh {
		select {
		case rescan <- struct{}{}:
		default:
		}
	}
}
