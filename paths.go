/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Common paths
 */

package main

const (
	// PathConfDir is the path to configuration directory
	PathConfDir = "/etc/lcdctl"

	// PathProgState is the path to program state directory
	PathProgState = "/var/lib/lcdctl"

	// PathLockDir is the path to directory that contains lock files
	PathLockDir = PathProgState + "/lock"

	// PathLockFile is the path to the daemon's lock file
	PathLockFile = PathLockDir + "/lcdctl.lock"

	// PathStateDB is the path to the bbolt persistent-state database
	PathStateDB = PathProgState + "/state.db"

	// PathLogDir is the path to the per-device/main log directory
	PathLogDir = PathProgState + "/log"

	// PathQuirksDir is the path to the built-in (packaged) quirks directory
	PathQuirksDir = "/usr/share/lcdctl/quirks"

	// PathConfQuirksDir is the path to the admin-editable quirks directory
	PathConfQuirksDir = PathConfDir + "/quirks.d"

	// PathControlSocket is the path to the Unix control socket the
	// capability-probe HTTP surface is served on
	PathControlSocket = PathProgState + "/control.sock"
)
