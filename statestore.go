/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Per-device persistent state: last-known PanelProfile (so a
 * reconnect can reuse it instead of re-deriving the resolution; the
 * handshake itself still runs) and the HR10 daemon's
 * consecutive-failure counter.
 */

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketPanelProfiles = []byte("panel_profiles")
	bucketHR10Failures  = []byte("hr10_failures")
)

// StateStore is a bbolt-backed persistent store, keyed by device
// identity (the DeviceDescriptor.Key() string).
type StateStore struct {
	db *bolt.DB
}

// OpenStateStore opens (creating if necessary) the persistent state
// database at PathStateDB.
func OpenStateStore() (*StateStore, error) {
	err := os.MkdirAll(filepath.Dir(PathStateDB), 0755)
	if err != nil {
		return nil, fmt.Errorf("statestore: %s", err)
	}

	db, err := bolt.Open(PathStateDB, 0644, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("statestore: %s", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPanelProfiles, bucketHR10Failures} {
			_, err := tx.CreateBucketIfNotExists(name)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: %s", err)
	}

	return &StateStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *StateStore) Close() error {
	return s.db.Close()
}

// SavePanelProfile persists the last-known PanelProfile for a device.
func (s *StateStore) SavePanelProfile(key string, profile PanelProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPanelProfiles).Put([]byte(key), data)
	})
}

// LoadPanelProfile returns the last-known PanelProfile for a device,
// or ok == false if none was ever saved.
func (s *StateStore) LoadPanelProfile(key string) (profile PanelProfile, ok bool) {
	s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPanelProfiles).Get([]byte(key))
		if data == nil {
			return nil
		}

		if json.Unmarshal(data, &profile) == nil {
			ok = true
		}

		return nil
	})

	return
}

// IncrHR10Failure increments and returns the HR10 daemon's
// consecutive-failure counter for a device.
func (s *StateStore) IncrHR10Failure(key string) (count uint) {
	s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketHR10Failures)
		count = decodeUint(bucket.Get([]byte(key))) + 1
		return bucket.Put([]byte(key), encodeUint(count))
	})

	return
}

// ResetHR10Failure resets the HR10 daemon's consecutive-failure
// counter for a device to zero, following a successful sensor read.
func (s *StateStore) ResetHR10Failure(key string) {
	s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHR10Failures).Delete([]byte(key))
	})
}

// encodeUint/decodeUint store small counters as decimal text, so the
// database stays readable with any generic bbolt inspection tool.
func encodeUint(v uint) []byte {
	return []byte(fmt.Sprintf("%d", v))
}

func decodeUint(b []byte) uint {
	if b == nil {
		return 0
	}

	var v uint
	fmt.Sscanf(string(b), "%d", &v)
	return v
}
