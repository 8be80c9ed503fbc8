/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Program configuration
 */

package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

const (
	// ConfFileName defines the name of the lcdctl configuration file
	ConfFileName = "lcdctl.conf"
)

// Configuration represents the program configuration.
type Configuration struct {
	DiscoveryPollInterval time.Duration // L1 polling fallback interval
	HR10Tick              time.Duration // L7 daemon sensor sampling interval
	HR10FailureThreshold  uint          // L7 consecutive-failure threshold before giving up
	ScsiExecutorPath      string        // Path to the sg_raw-compatible helper
	ControlSocketPath     string        // "control-socket" value; the socket itself is always at PathControlSocket
	LogDevice             LogLevel      // Per-device LogLevel mask
	LogMain               LogLevel      // Main log LogLevel mask
	LogConsole            LogLevel      // Console LogLevel mask
	LogMaxFileSize        int64         // Maximum log file size
	LogMaxBackupFiles     uint          // Count of files preserved during rotation
	ColorConsole          bool          // Enable ANSI colors on console
	Quirks                QuirksDb      // Device quirks
}

// Conf contains the global instance of the program configuration.
var Conf = Configuration{
	DiscoveryPollInterval: DiscoveryPollInterval,
	HR10Tick:              HR10DefaultTick,
	HR10FailureThreshold:  HR10DefaultFailureThreshold,
	ScsiExecutorPath:      "sg_raw",
	ControlSocketPath:     PathControlSocket,
	LogDevice:             LogDebug,
	LogMain:               LogDebug,
	LogConsole:            LogDebug,
	LogMaxFileSize:        256 * 1024,
	LogMaxBackupFiles:     5,
	ColorConsole:          true,
}

// ConfLoad loads the program configuration.
func ConfLoad() error {
	// Obtain path to the executable directory
	exepath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("conf: %s", err)
	}

	exepath = filepath.Dir(exepath)

	// Build the list of configuration files
	files := []string{
		filepath.Join(PathConfDir, ConfFileName),
		filepath.Join(exepath, ConfFileName),
	}

	for _, file := range files {
		err = confLoadInternal(file)
		if err != nil {
			return fmt.Errorf("conf: %s", err)
		}
	}

	// Load quirks
	quirksDirs := []string{
		PathQuirksDir,
		PathConfQuirksDir,
		filepath.Join(exepath, "lcdctl-quirks"),
	}

	Conf.Quirks, err = LoadQuirksSet(quirksDirs...)
	if err != nil {
		return fmt.Errorf("conf: %s", err)
	}

	return nil
}

// confLoadInternal loads the program configuration from a single file.
func confLoadInternal(path string) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{Loose: true}, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if sect, err := cfg.GetSection("daemon"); err == nil {
		if key, err := sect.GetKey("discovery-poll-interval"); err == nil {
			err = confLoadDurationKey(&Conf.DiscoveryPollInterval, key)
			if err != nil {
				return err
			}
		}

		if key, err := sect.GetKey("scsi-executor"); err == nil {
			Conf.ScsiExecutorPath = key.String()
		}

		if key, err := sect.GetKey("control-socket"); err == nil {
			Conf.ControlSocketPath = key.String()
		}
	}

	if sect, err := cfg.GetSection("hr10"); err == nil {
		if key, err := sect.GetKey("tick"); err == nil {
			err = confLoadDurationKey(&Conf.HR10Tick, key)
			if err != nil {
				return err
			}
		}

		if key, err := sect.GetKey("failure-threshold"); err == nil {
			n, err := key.Uint()
			if err != nil {
				return confBadValue(key, "%q: invalid number", key.Value())
			}
			Conf.HR10FailureThreshold = uint(n)
		}
	}

	if sect, err := cfg.GetSection("logging"); err == nil {
		if key, err := sect.GetKey("device-log"); err == nil {
			err = confLoadLogLevelKey(&Conf.LogDevice, key)
			if err != nil {
				return err
			}
		}

		if key, err := sect.GetKey("main-log"); err == nil {
			err = confLoadLogLevelKey(&Conf.LogMain, key)
			if err != nil {
				return err
			}
		}

		if key, err := sect.GetKey("console-log"); err == nil {
			err = confLoadLogLevelKey(&Conf.LogConsole, key)
			if err != nil {
				return err
			}
		}

		if key, err := sect.GetKey("console-color"); err == nil {
			err = confLoadBinaryKey(&Conf.ColorConsole, key, "disable", "enable")
			if err != nil {
				return err
			}
		}

		if key, err := sect.GetKey("max-file-size"); err == nil {
			err = confLoadSizeKey(&Conf.LogMaxFileSize, key)
			if err != nil {
				return err
			}
		}

		if key, err := sect.GetKey("max-backup-files"); err == nil {
			n, err := key.Uint()
			if err != nil {
				return confBadValue(key, "%q: invalid number", key.Value())
			}
			Conf.LogMaxBackupFiles = uint(n)
		}
	}

	return nil
}

// confBadValue creates a "bad value" error for the given key.
func confBadValue(key *ini.Key, format string, args ...interface{}) error {
	return fmt.Errorf(key.Name()+": "+format, args...)
}

// confLoadBinaryKey loads a two-valued (on/off style) key.
func confLoadBinaryKey(out *bool, key *ini.Key, vFalse, vTrue string) error {
	switch key.Value() {
	case vFalse:
		*out = false
		return nil
	case vTrue:
		*out = true
		return nil
	default:
		return confBadValue(key, "must be %s or %s", vFalse, vTrue)
	}
}

// confLoadLogLevelKey loads a comma-separated LogLevel mask key.
func confLoadLogLevelKey(out *LogLevel, key *ini.Key) error {
	var mask LogLevel
	for _, s := range strings.Split(key.Value(), ",") {
		s = strings.TrimSpace(s)
		switch s {
		case "":
		case "error":
			mask |= LogError
		case "info":
			mask |= LogInfo | LogError
		case "debug":
			mask |= LogDebug | LogInfo | LogError
		case "trace-usb":
			mask |= LogTraceUsb | LogDebug | LogInfo | LogError
		case "trace-scsi":
			mask |= LogTraceScsi | LogDebug | LogInfo | LogError
		case "trace-protocol":
			mask |= LogTraceProtocol | LogDebug | LogInfo | LogError
		case "all", "trace-all":
			mask |= LogAll
		default:
			return confBadValue(key, "invalid log level %q", s)
		}
	}

	*out = mask
	return nil
}

// confLoadSizeKey loads a size (bytes, optionally suffixed with k/K/m/M) key.
func confLoadSizeKey(out *int64, key *ini.Key) error {
	value := key.Value()
	units := uint64(1)

	if l := len(value); l > 0 {
		switch value[l-1] {
		case 'k', 'K':
			units = 1024
		case 'm', 'M':
			units = 1024 * 1024
		}

		if units != 1 {
			value = value[:l-1]
		}
	}

	sz, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return confBadValue(key, "%q: invalid size", value)
	}

	if sz > uint64(math.MaxInt64/units) {
		return confBadValue(key, "size too large")
	}

	*out = int64(sz * units)
	return nil
}

// confLoadDurationKey loads a key as a time.Duration, accepting either
// a bare millisecond count or a Go duration string (e.g. "250ms", "3s").
func confLoadDurationKey(out *time.Duration, key *ini.Key) error {
	value := key.Value()

	if ms, err := strconv.ParseUint(value, 10, 32); err == nil {
		*out = time.Millisecond * time.Duration(ms)
		return nil
	}

	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return confBadValue(key, "%q: invalid duration", value)
	}

	*out = d
	return nil
}

// validateConf performs cross-field validation of the loaded configuration.
func validateConf() error {
	if Conf.HR10FailureThreshold == 0 {
		return errors.New("hr10 failure-threshold must be greater than zero")
	}

	return nil
}
