/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Configuration constants
 */

package main

import (
	"time"
)

const (
	// DevHandshakeTimeoutHid is the read/write deadline for the HID/Bulk
	// handshake probe (spec: "coarse, 1s for handshake")
	DevHandshakeTimeoutHid = 1 * time.Second

	// DevFrameTimeoutHid is the read/write deadline for HID/Bulk frame I/O
	// (spec: "5s for frame I/O")
	DevFrameTimeoutHid = 5 * time.Second

	// DevInitRetryInterval specifies the retry interval for failed
	// device initialization
	DevInitRetryInterval = 2 * time.Second

	// DevShutdownTimeout specifies how much time to wait for graceful
	// sender/transport shutdown
	DevShutdownTimeout = 5 * time.Second

	// DiscoveryPollInterval is the fallback polling interval used when
	// udev hotplug notifications are unavailable
	DiscoveryPollInterval = 3 * time.Second

	// ScsiChunkSize is the maximum SCSI pass-through payload per command,
	// a hard device constraint (spec §4.3.1)
	ScsiChunkSize = 64 * 1024

	// ScsiFrameCmdBase is the base command word each SCSI chunk command
	// is OR-ed with a shifted chunk index (spec: E2E-1, base = 0x15)
	ScsiFrameCmdBase = 0x0000_0015

	// HidFrameHeaderSize is the size of the fixed header preceding an
	// HID/Bulk LCD frame payload
	HidFrameHeaderSize = 64

	// HidBulkWriteChunk is the chunk size frame payload bytes are
	// streamed to the device in, over HID/Bulk transports
	HidBulkWriteChunk = 16 * 1024

	// HR10DefaultFailureThreshold is the number of consecutive sensor
	// read failures the HR10 daemon tolerates before exiting non-zero
	HR10DefaultFailureThreshold = 10

	// HR10DefaultTick is the default HR10 sensor-read/render period
	HR10DefaultTick = 1 * time.Second
)
