/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Control socket handler
 *
 * lcdctl runs a small JSON API on a top of the unix domain control
 * socket, so "lcdctl status" (or any other local client) can query
 * the running daemon's view of attached devices without touching
 * the USB bus itself. Using a full HTTP stack here is overkill for
 * one endpoint, but it costs us virtually nothing and is trivially
 * extendable.
 */

package main

import (
	"log"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
)

// DeviceStatus is the capability-probe record exposed per discovered
// device, per spec's report surface.
type DeviceStatus struct {
	Vid            uint16 `json:"vid"`
	Pid            uint16 `json:"pid"`
	Vendor         string `json:"vendor"`
	Product        string `json:"product"`
	BusPath        string `json:"bus_path"`
	Transport      string `json:"transport"`
	Family         int    `json:"family"`
	HandshakeOK    bool   `json:"handshake_ok"`
	ResolutionW    int    `json:"resolution_w,omitempty"`
	ResolutionH    int    `json:"resolution_h,omitempty"`
	ModelID        uint32 `json:"model_id"`
	SerialPrefix16 string `json:"serial_prefix_16"`
}

// statusTable holds the most recently observed DeviceStatus for every
// device currently known to the daemon, keyed by DeviceDescriptor.Key().
var (
	statusLock  sync.RWMutex
	statusTable = make(map[string]DeviceStatus)
)

// StatusSet records (or replaces) the status of a device.
func StatusSet(key string, status DeviceStatus) {
	statusLock.Lock()
	statusTable[key] = status
	statusLock.Unlock()
}

// StatusDel removes a device from the status table, e.g. on unplug.
func StatusDel(key string) {
	statusLock.Lock()
	delete(statusTable, key)
	statusLock.Unlock()
}

// StatusSnapshot returns a stable-ordered copy of all known device
// statuses.
func StatusSnapshot() []DeviceStatus {
	statusLock.RLock()
	defer statusLock.RUnlock()

	out := make([]DeviceStatus, 0, len(statusTable))
	for _, st := range statusTable {
		out = append(out, st)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].BusPath < out[j].BusPath
	})

	return out
}

var (
	// CtrlsockAddr contains the control socket address in a form of
	// the net.UnixAddr structure.
	CtrlsockAddr = &net.UnixAddr{Name: PathControlSocket, Net: "unix"}

	ctrlsockServer *http.Server
)

// newCtrlsockEngine builds the gin router that serves the control
// socket's JSON API.
func newCtrlsockEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.RecoveryWithWriter(Log.LineWriter(LogError, '!')))

	engine.GET("/status", func(c *gin.Context) {
		Log.Debug(' ', "ctrlsock: %s %s", c.Request.Method, c.Request.URL)
		c.Header("Cache-Control", "no-cache, no-store")
		c.JSON(http.StatusOK, StatusSnapshot())
	})

	engine.GET("/status/:busPath", func(c *gin.Context) {
		Log.Debug(' ', "ctrlsock: %s %s", c.Request.Method, c.Request.URL)
		c.Header("Cache-Control", "no-cache, no-store")

		busPath := c.Param("busPath")
		for _, st := range StatusSnapshot() {
			if st.BusPath == busPath {
				c.JSON(http.StatusOK, st)
				return
			}
		}

		c.JSON(http.StatusNotFound, gin.H{"error": "no such device"})
	})

	return engine
}

// CtrlsockStart starts the control socket server.
func CtrlsockStart() error {
	Log.Debug(' ', "ctrlsock: listening at %q", PathControlSocket)

	os.Remove(PathControlSocket)

	listener, err := net.ListenUnix("unix", CtrlsockAddr)
	if err != nil {
		return err
	}

	// Make the socket accessible to everybody. Error is ignored,
	// it's not a reason to abort lcdctl.
	os.Chmod(PathControlSocket, 0777)

	ctrlsockServer = &http.Server{
		Handler:  newCtrlsockEngine(),
		ErrorLog: log.New(Log.LineWriter(LogError, '!'), "", 0),
	}

	go func() {
		ctrlsockServer.Serve(listener)
	}()

	return nil
}

// CtrlsockStop stops the control socket server.
func CtrlsockStop() {
	Log.Debug(' ', "ctrlsock: shutdown")
	if ctrlsockServer != nil {
		ctrlsockServer.Close()
	}
}

// CtrlsockDial connects to the control socket of the running lcdctl
// daemon.
func CtrlsockDial() (net.Conn, error) {
	conn, err := net.DialUnix("unix", nil, CtrlsockAddr)

	if err == nil {
		return conn, err
	}

	if neterr, ok := err.(*net.OpError); ok {
		if syserr, ok := neterr.Err.(*os.SyscallError); ok {
			switch syserr.Err {
			case syscall.ECONNREFUSED, syscall.ENOENT:
				err = ErrNoDaemon

			case syscall.EACCES, syscall.EPERM:
				err = ErrAccess
			}
		}
	}

	return conn, err
}
