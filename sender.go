/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * L4: sender cache and factory. At most one open Sender is kept per
 * device key; send_frame calls against the same sender are serialised,
 * but the cache-level lock is never held during device I/O.
 */

package main

import "sync"

// Sender owns one open Transport/Protocol pair for a single device
// and serialises send_frame calls against it.
type Sender struct {
	desc   DeviceDescriptor
	proto  Protocol
	result HandshakeResult

	mu sync.Mutex
}

// newSender opens the transport appropriate to desc's implementation
// key, runs the handshake, and returns a ready Sender. The transport
// is closed and the error propagated if either step fails. store, when
// non-nil, supplies the last-known PanelProfile for desc.Key() as a
// hint to the protocol handler and is updated with the fresh result
// once the handshake succeeds.
func newSender(desc DeviceDescriptor, quirks *Quirks, exec ScsiExecutor, store *StateStore) (*Sender, error) {
	var tr Transport
	var proto Protocol

	var hint *PanelProfile
	if store != nil {
		if cached, ok := store.LoadPanelProfile(desc.Key()); ok {
			hint = &cached
		}
	}

	switch desc.ImplementationKey {
	case ImplScsiLCD:
		proto = NewScsiProtocol(desc, exec, hint)

	case ImplHidLCD:
		tr = NewUsbBulkTransport(desc)
		if err := tr.Open(); err != nil {
			return nil, err
		}
		proto = NewHidProtocol(desc, tr, hint)

	case ImplBulkLCD:
		tr = NewUsbBulkTransport(desc)
		if err := tr.Open(); err != nil {
			return nil, err
		}
		proto = NewBulkProtocol(desc, tr, hint)

	case ImplLedHID:
		tr = NewLedHidTransport(desc)
		if err := tr.Open(); err != nil {
			return nil, err
		}
		proto = NewLedHidProtocol(desc, tr, quirks)

	default:
		return nil, ErrUnsupportedDevice(desc.Vid, desc.Pid)
	}

	result, err := proto.Handshake()
	if err != nil {
		proto.Close()
		return nil, err
	}

	if store != nil && result.HasResolution {
		profile := PanelProfile{
			Width:       result.Resolution.Width,
			Height:      result.Resolution.Height,
			PixelFormat: result.PixelFormat,
			ModelID:     result.ModelID,
			Serial:      result.Serial,
		}
		store.SavePanelProfile(desc.Key(), profile)
	}

	return &Sender{desc: desc, proto: proto, result: result}, nil
}

// SendFrame serialises job against any other in-flight send_frame call
// on this sender.
func (s *Sender) SendFrame(job FrameJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.proto.SendFrame(job)
}

// Result returns the HandshakeResult captured when the sender was built.
func (s *Sender) Result() HandshakeResult {
	return s.result
}

// Close releases the underlying transport. Safe to call once per sender.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.proto.Close()
}

// SenderCache keeps at most one open Sender per device key. The cache
// mutex guards only the map; it is never held across device I/O.
type SenderCache struct {
	mu      sync.Mutex
	senders map[string]*Sender
	exec    ScsiExecutor
	store   *StateStore
}

// NewSenderCache creates an empty cache. exec is the ScsiExecutor
// shared by all SCSI-family senders built through this cache. store,
// which may be nil, backs the last-known PanelProfile side-cache
// consulted and updated on every handshake.
func NewSenderCache(exec ScsiExecutor, store *StateStore) *SenderCache {
	return &SenderCache{
		senders: make(map[string]*Sender),
		exec:    exec,
		store:   store,
	}
}

// GetSender returns the cached sender for desc, building and caching
// one (via handshake) if absent. Two calls with equal desc.Key() are
// guaranteed to return the same instance.
func (c *SenderCache) GetSender(desc DeviceDescriptor, quirks *Quirks) (*Sender, error) {
	key := desc.Key()

	c.mu.Lock()
	if s, ok := c.senders[key]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	s, err := newSender(desc, quirks, c.exec, c.store)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.senders[key]; ok {
		// Another goroutine built one first; keep theirs, discard ours.
		s.Close()
		return existing, nil
	}

	c.senders[key] = s
	return s, nil
}

// RemoveSender evicts and closes the sender for desc, if present.
func (c *SenderCache) RemoveSender(desc DeviceDescriptor) {
	key := desc.Key()

	c.mu.Lock()
	s, ok := c.senders[key]
	if ok {
		delete(c.senders, key)
	}
	c.mu.Unlock()

	if ok {
		s.Close()
	}
}

// SendFrame is the usual entry point: it fetches or builds the sender
// for desc, submits job, and evicts the sender if the failure is one
// that invalidates the open session (TransportOpenFailed,
// HandshakeFailed never occur here directly, but a send_frame retry
// path may reuse this after eviction).
func (c *SenderCache) SendFrame(desc DeviceDescriptor, quirks *Quirks, job FrameJob) error {
	s, err := c.GetSender(desc, quirks)
	if err != nil {
		return err
	}

	err = s.SendFrame(job)
	if err != nil && (IsTag(err, TagTransportOpenFailed) || IsTag(err, TagHandshakeFailed)) {
		c.RemoveSender(desc)
	}

	return err
}

// CloseAll closes every cached sender and empties the cache.
func (c *SenderCache) CloseAll() {
	c.mu.Lock()
	senders := c.senders
	c.senders = make(map[string]*Sender)
	c.mu.Unlock()

	for _, s := range senders {
		s.Close()
	}
}

// CachedCount returns the number of senders currently cached.
func (c *SenderCache) CachedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.senders)
}
