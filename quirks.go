/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Device-specific quirks
 */

package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// Quirk represents a single quirk
type Quirk struct {
	Origin    string       // file:line (or section) of definition
	Match     string       // Match pattern
	MatchHWID *HWIDPattern // HWID match pattern or nil
	Name      string       // Quirk name
	RawValue  string       // Quirk raw (not parsed) value
	Parsed    interface{}  // Parsed value
	LoadOrder int          // Incremented in order of loading
}

// Quirk names. Use these constants instead of literal strings,
// so compiler will catch a mistake:
const (
	QuirkNmBlacklist             = "blacklist"
	QuirkNmChunkSizeOverride     = "chunk-size-override"
	QuirkNmInitDelay             = "init-delay"
	QuirkNmInitReset             = "init-reset"
	QuirkNmInitRetryCount        = "init-retry-count"
	QuirkNmInitTimeout           = "init-timeout"
	QuirkNmMfg                   = "mfg"
	QuirkNmModel                 = "model"
	QuirkNmRequestDelay          = "request-delay"
	QuirkNmUsbMaxInterfaces      = "usb-max-interfaces"
	QuirkNmUsbSendDelayThreshold = "usb-send-delay-threshold"
	QuirkNmUsbSendDelay          = "usb-send-delay"
	QuirkNmZlpRecvHack           = "zlp-recv-hack"
	QuirkNmZlpSend               = "zlp-send"
)

// quirkParse maps quirk names into appropriate parsing methods,
// which define value syntax and the resulting type.
var quirkParse = map[string]func(*Quirk) error{
	QuirkNmBlacklist:             (*Quirk).parseBool,
	QuirkNmChunkSizeOverride:     (*Quirk).parseUint,
	QuirkNmInitDelay:             (*Quirk).parseDuration,
	QuirkNmInitReset:             (*Quirk).parseQuirkResetMethod,
	QuirkNmInitRetryCount:        (*Quirk).parseUint,
	QuirkNmInitTimeout:           (*Quirk).parseDuration,
	QuirkNmMfg:                   (*Quirk).parseString,
	QuirkNmModel:                 (*Quirk).parseString,
	QuirkNmRequestDelay:          (*Quirk).parseDuration,
	QuirkNmUsbMaxInterfaces:      (*Quirk).parseUint,
	QuirkNmUsbSendDelay:          (*Quirk).parseDuration,
	QuirkNmUsbSendDelayThreshold: (*Quirk).parseUint,
	QuirkNmZlpRecvHack:           (*Quirk).parseBool,
	QuirkNmZlpSend:               (*Quirk).parseBool,
}

// quirkDefaultStrings contains default values for quirks, in a string form.
var quirkDefaultStrings = map[string]string{
	QuirkNmBlacklist:             "false",
	QuirkNmChunkSizeOverride:     "0",
	QuirkNmInitDelay:             "0",
	QuirkNmInitReset:             "none",
	QuirkNmInitRetryCount:        "3",
	QuirkNmInitTimeout:           "5s",
	QuirkNmMfg:                   "",
	QuirkNmModel:                 "",
	QuirkNmRequestDelay:          "0",
	QuirkNmUsbMaxInterfaces:      "0",
	QuirkNmUsbSendDelay:          "0",
	QuirkNmUsbSendDelayThreshold: "0",
	QuirkNmZlpRecvHack:           "false",
	QuirkNmZlpSend:               "false",
}

// quirkDefault contains default values for quirks, precompiled.
var quirkDefault = make(map[string]*Quirk)

// init populates quirkDefault using quirk values from quirkDefaultStrings.
func init() {
	for name, value := range quirkDefaultStrings {
		q := &Quirk{
			Origin:    "default",
			Match:     "*",
			Name:      name,
			RawValue:  value,
			LoadOrder: math.MaxInt32,
		}

		parse := quirkParse[name]
		err := parse(q)
		if err != nil {
			panic(err)
		}

		quirkDefault[name] = q
	}
}

// isHWID reports if Quirk is matched by HWID
func (q *Quirk) isHWID() bool {
	return q.MatchHWID != nil
}

// parseString parses and saves [Quirk.RawValue] as string.
func (q *Quirk) parseString() error {
	q.Parsed = q.RawValue
	return nil
}

// parseBool parses and saves [Quirk.RawValue] as bool.
func (q *Quirk) parseBool() error {
	switch q.RawValue {
	case "true":
		q.Parsed = true
	case "false":
		q.Parsed = false
	default:
		return fmt.Errorf("%q: must be true or false", q.RawValue)
	}

	return nil
}

// parseUint parses [Quirk.RawValue] as unsigned int.
func (q *Quirk) parseUint() error {
	v, err := strconv.ParseUint(q.RawValue, 10, 32)
	if err != nil {
		return fmt.Errorf("%q: invalid unsigned integer", q.RawValue)
	}

	q.Parsed = uint(v)
	return nil
}

// parseDuration parses [Quirk.RawValue] as time.Duration.
func (q *Quirk) parseDuration() error {
	// Try to parse as uint. If OK, interpret it as a millisecond time.
	ms, err := strconv.ParseUint(q.RawValue, 10, 32)
	if err == nil {
		q.Parsed = time.Millisecond * time.Duration(ms)
		return nil
	}

	if strings.HasPrefix(q.RawValue, "+") ||
		strings.HasPrefix(q.RawValue, "-") {
		// Note, time.ParseDuration allows signed duration,
		// but we don't.
		return fmt.Errorf("%q: invalid duration", q.RawValue)
	}

	v, err := time.ParseDuration(q.RawValue)
	if err == nil && v >= 0 {
		q.Parsed = v
		return nil
	}

	return fmt.Errorf("%q: invalid duration", q.RawValue)
}

// parseQuirkResetMethod parses [Quirk.RawValue] as QuirkResetMethod.
func (q *Quirk) parseQuirkResetMethod() error {
	switch q.RawValue {
	case "none":
		q.Parsed = QuirkResetNone
	case "soft":
		q.Parsed = QuirkResetSoft
	case "hard":
		q.Parsed = QuirkResetHard
	default:
		return fmt.Errorf("%q: must be none, soft or hard", q.RawValue)
	}

	return nil
}

// QuirkResetMethod represents how a device is reset during initialization.
type QuirkResetMethod int

// QuirkResetNone - don't reset the device at all
// QuirkResetSoft - re-issue the protocol handshake (class-specific soft reset)
// QuirkResetHard - issue a USB port/device reset
const (
	QuirkResetNone QuirkResetMethod = iota
	QuirkResetSoft
	QuirkResetHard
)

// String returns textual representation of QuirkResetMethod
func (m QuirkResetMethod) String() string {
	switch m {
	case QuirkResetNone:
		return "none"
	case QuirkResetSoft:
		return "soft"
	case QuirkResetHard:
		return "hard"
	}

	return fmt.Sprintf("unknown (%d)", int(m))
}

// Quirks is the collection of Quirk, indexed by Quirk.Name.
// All quirks in the collection have a unique name.
//
// It is used for two purposes:
//   - to represent a section of the quirks file
//   - to represent the effective set of quirks, pulled for a particular device
type Quirks struct {
	byName  map[string]*Quirk // Quirks by name
	weights map[string]int    // Matching weights, used during pull
}

// NewQuirks creates a new, empty Quirks set.
func NewQuirks() *Quirks {
	return &Quirks{
		byName:  make(map[string]*Quirk),
		weights: make(map[string]int),
	}
}

// put adds Quirk to Quirks, replacing any existing quirk of the same name.
func (quirks *Quirks) put(q *Quirk) {
	quirks.byName[q.Name] = q
}

// prioritizeAndSave saves q into quirks, if it is either not yet in the
// set or has a higher matching weight than what's already there.
func (quirks *Quirks) prioritizeAndSave(q *Quirk, weight int) {
	prev := quirks.byName[q.Name]
	prevWeight := quirks.weights[q.Name]

	save := false

	switch {
	case prev == nil:
		// Always save, if the Quirk is not yet in the set
		save = true
	case weight > prevWeight:
		// More specific match wins
		save = true
	case weight == prevWeight && q.LoadOrder < prev.LoadOrder:
		// Equal match: first loaded wins
		save = true
	}

	if save {
		quirks.put(q)
		quirks.weights[q.Name] = weight
	}
}

// WriteLog writes Quirks to the log.
func (quirks *Quirks) WriteLog(title string, log *Logger) {
	if quirks.IsEmpty() {
		log.Debug(' ', "%s: EMPTY", title)
		return
	}

	log.Debug(' ', "%s:", title)

	prevMatch := ""
	for _, q := range quirks.All() {
		val := q.RawValue
		if _, isStr := q.Parsed.(string); isStr {
			val = strconv.Quote(val)
		}

		if q.Match != prevMatch {
			prevMatch = q.Match
			log.Debug(' ', "  [%s]", q.Match)
		}

		log.Debug(' ', "    ; (%s)", q.Origin)
		log.Debug(' ', "    %s = %s", q.Name, val)
	}
}

// IsEmpty reports if Quirks are empty
func (quirks *Quirks) IsEmpty() bool {
	return len(quirks.byName) == 0
}

// Get returns a quirk by name, falling back to its built-in default.
func (quirks *Quirks) Get(name string) *Quirk {
	q := quirks.byName[name]
	if q == nil {
		q = quirkDefault[name]
	}

	return q
}

// All returns all quirks in the collection, sorted by name. This method
// is intended mostly for diagnostic purposes (logging, dumping, testing).
func (quirks *Quirks) All() []*Quirk {
	qq := make([]*Quirk, 0, len(quirks.byName))
	for _, q := range quirks.byName {
		qq = append(qq, q)
	}

	sort.Slice(qq, func(i, j int) bool {
		return qq[i].Name < qq[j].Name
	})

	return qq
}

// PullByHWID pulls, from qdb, quirks matched by exact (vid,pid), and
// merges them into quirks (higher-weighted matches win).
func (quirks *Quirks) PullByHWID(qdb QuirksDb, vid, pid uint16) {
	for _, set := range qdb {
		for _, q := range set.byName {
			if q.isHWID() {
				weight := q.MatchHWID.Match(vid, pid)
				if weight >= 0 {
					quirks.prioritizeAndSave(q, weight)
				}
			}
		}
	}
}

// PullByModelName pulls, from qdb, quirks matched by device model name,
// and merges them into quirks (higher-weighted matches win).
func (quirks *Quirks) PullByModelName(qdb QuirksDb, model string) {
	for _, set := range qdb {
		for _, q := range set.byName {
			if !q.isHWID() {
				// Multiplying GlobMatch by 2 puts a model-name
				// match with at least one literal character
				// above the wildcard HWID match (weight 1),
				// leaves the all-wildcard "*" match (weight 0)
				// below it, and keeps patterns of fewer than 500
				// literal characters below an exact HWID match
				// (weight 1000), while still ranking more
				// specific model patterns above less specific
				// ones.
				weight := 2 * GlobMatch(model, q.Match)
				if weight >= 0 {
					quirks.prioritizeAndSave(q, weight)
				}
			}
		}
	}
}

// GetBlacklist returns the effective "blacklist" parameter.
func (quirks *Quirks) GetBlacklist() bool {
	return quirks.Get(QuirkNmBlacklist).Parsed.(bool)
}

// GetChunkSizeOverride returns the effective "chunk-size-override"
// parameter. Zero means "use the transport's default chunk size".
func (quirks *Quirks) GetChunkSizeOverride() uint {
	return quirks.Get(QuirkNmChunkSizeOverride).Parsed.(uint)
}

// GetInitDelay returns the effective "init-delay" parameter.
func (quirks *Quirks) GetInitDelay() time.Duration {
	return quirks.Get(QuirkNmInitDelay).Parsed.(time.Duration)
}

// GetInitRetryCount returns the effective "init-retry-count" parameter.
func (quirks *Quirks) GetInitRetryCount() uint {
	return quirks.Get(QuirkNmInitRetryCount).Parsed.(uint)
}

// GetInitReset returns the effective "init-reset" parameter.
func (quirks *Quirks) GetInitReset() QuirkResetMethod {
	return quirks.Get(QuirkNmInitReset).Parsed.(QuirkResetMethod)
}

// GetInitTimeout returns the effective "init-timeout" parameter.
func (quirks *Quirks) GetInitTimeout() time.Duration {
	return quirks.Get(QuirkNmInitTimeout).Parsed.(time.Duration)
}

// GetMfg returns the effective "mfg" parameter.
func (quirks *Quirks) GetMfg() string {
	return quirks.Get(QuirkNmMfg).Parsed.(string)
}

// GetModel returns the effective "model" parameter.
func (quirks *Quirks) GetModel() string {
	return quirks.Get(QuirkNmModel).Parsed.(string)
}

// GetRequestDelay returns the effective "request-delay" parameter.
func (quirks *Quirks) GetRequestDelay() time.Duration {
	return quirks.Get(QuirkNmRequestDelay).Parsed.(time.Duration)
}

// GetUsbMaxInterfaces returns the effective "usb-max-interfaces" parameter.
func (quirks *Quirks) GetUsbMaxInterfaces() uint {
	return quirks.Get(QuirkNmUsbMaxInterfaces).Parsed.(uint)
}

// GetUsbSendDelayThreshold returns the effective
// "usb-send-delay-threshold" parameter.
func (quirks *Quirks) GetUsbSendDelayThreshold() uint {
	return quirks.Get(QuirkNmUsbSendDelayThreshold).Parsed.(uint)
}

// GetUsbSendDelay returns the effective "usb-send-delay" parameter.
func (quirks *Quirks) GetUsbSendDelay() time.Duration {
	return quirks.Get(QuirkNmUsbSendDelay).Parsed.(time.Duration)
}

// GetZlpRecvHack returns the effective "zlp-recv-hack" parameter.
func (quirks *Quirks) GetZlpRecvHack() bool {
	return quirks.Get(QuirkNmZlpRecvHack).Parsed.(bool)
}

// GetZlpSend returns the effective "zlp-send" parameter.
func (quirks *Quirks) GetZlpSend() bool {
	return quirks.Get(QuirkNmZlpSend).Parsed.(bool)
}

// QuirksDb represents an in-memory database of Quirks, as loaded from
// quirks files on disk. Each element corresponds to one [vid:pid] or
// [model-glob] section.
type QuirksDb []*Quirks

// LoadQuirksSet creates a new QuirksDb and loads its content from the
// given directories (missing directories are silently skipped).
func LoadQuirksSet(paths ...string) (QuirksDb, error) {
	qdb := QuirksDb{}

	for _, path := range paths {
		err := qdb.readDir(path)
		if err != nil {
			return nil, err
		}
	}

	return qdb, nil
}

// readDir loads all quirks from *.conf files in a directory.
func (qdb *QuirksDb) readDir(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), ".conf") {
			err = qdb.readFile(filepath.Join(path, entry.Name()))
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// readFile loads quirks from a single *.conf file, using the INI syntax:
// each [section] header names either a "VVVV:PPPP"/"VVVV:*" hardware ID
// pattern or a glob-style model-name pattern, and its keys are quirk names.
func (qdb *QuirksDb) readFile(file string) error {
	cfg, err := ini.Load(file)
	if err != nil {
		return fmt.Errorf("%s: %s", file, err)
	}

	loadOrder := 0

	for _, section := range cfg.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			if len(section.Keys()) != 0 {
				return fmt.Errorf(
					"%s: quirk defined outside of any section", file)
			}
			continue
		}

		matchHWID := ParseHWIDPattern(name)
		quirks := NewQuirks()

		for _, key := range section.Keys() {
			parse := quirkParse[key.Name()]
			if parse == nil {
				// Ignore unknown keys; may be a quirk added
				// by a newer version of lcdctl.
				continue
			}

			q := &Quirk{
				Origin:    fmt.Sprintf("%s:[%s]", file, name),
				Match:     name,
				MatchHWID: matchHWID,
				Name:      key.Name(),
				RawValue:  key.Value(),
				LoadOrder: loadOrder,
			}
			loadOrder++

			err := parse(q)
			if err != nil {
				return fmt.Errorf("%s: [%s]: %s", file, name, err)
			}

			quirks.put(q)
		}

		qdb.Add(quirks)
	}

	return nil
}

// Add appends a Quirks set to QuirksDb.
func (qdb *QuirksDb) Add(q *Quirks) {
	*qdb = append(*qdb, q)
}
