/* lcdctl - device I/O core for USB-attached LCD/LED cooler panels
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * The main function: a thin CLI dispatcher over the core packages.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

const usageText = `Usage:
    %s <command> [args]

Commands are:
    discover               - scan the USB bus once, print known devices
    status [bus_path]      - query the running daemon's control socket
    daemon                 - run forever, serving every attached device
    send <vid:pid> <image> - one-shot: encode and push a single frame
    hr10                   - run the HR10 LED temperature daemon
    theme export <file>    - write a default .tr theme container
    theme import <file>    - parse a .tr theme container, print a summary
    check                  - validate configuration and quirks, then exit

Options are:
    -bg                    - run "daemon" in the background
`

func usage() {
	fmt.Printf(usageText, os.Args[0])
	os.Exit(0)
}

func usageError(format string, args ...interface{}) {
	if format != "" {
		fmt.Printf(format+"\n", args...)
	}
	fmt.Printf("Try %s -h for more information\n", os.Args[0])
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usageError("missing command")
	}

	switch os.Args[1] {
	case "-h", "-help", "--help":
		usage()
	case "discover":
		cmdDiscover()
	case "status":
		cmdStatus(os.Args[2:])
	case "daemon":
		cmdDaemon(os.Args[2:])
	case "send":
		cmdSend(os.Args[2:])
	case "hr10":
		cmdHR10()
	case "theme":
		cmdTheme(os.Args[2:])
	case "check":
		cmdCheck()
	default:
		usageError("unknown command %q", os.Args[1])
	}
}

// cmdDiscover runs L1 once and prints a table of matched devices.
func cmdDiscover() {
	Console.ToColorConsole()

	UsbInit()
	defer UsbClose()

	devices := discover()
	if len(devices) == 0 {
		fmt.Println("No known devices found")
		return
	}

	fmt.Printf("%-10s %-16s %-20s %-8s %s\n",
		"vid:pid", "bus_path", "product", "transport", "family")
	for _, d := range devices {
		fmt.Printf("%04x:%04x %-16s %-20s %-8s %d\n",
			d.Vid, d.Pid, d.BusPath, d.ProductName, d.PixelTransport, d.DeviceFamilyID)
	}
}

// ctrlsockClient builds an http.Client that dials the control socket
// regardless of the URL host it's given.
func ctrlsockClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return CtrlsockDial()
			},
		},
	}
}

// cmdStatus queries the running daemon's capability-probe surface and
// pretty-prints the JSON it returns.
func cmdStatus(args []string) {
	url := "http://lcdctl/status"
	if len(args) > 0 {
		url = "http://lcdctl/status/" + args[0]
	}

	resp, err := ctrlsockClient().Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: %s\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var out interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "status: %s\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

// cmdDaemon runs the PnP loop and the control socket until interrupted.
func cmdDaemon(args []string) {
	background := false
	for _, a := range args {
		if a == "-bg" {
			background = true
		}
	}

	err := ConfLoad()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lcdctl: %s\n", err)
		os.Exit(1)
	}

	if Conf.ColorConsole {
		Console.ToColorConsole()
	}
	Log.SetLevels(Conf.LogMain)
	Console.SetLevels(Conf.LogConsole)
	Log.Cc(LogAll, Console)

	if err := validateConf(); err != nil {
		Log.Error('!', "lcdctl: %s", err)
		os.Exit(1)
	}

	if background {
		if err := Daemon(); err != nil {
			Log.Error('!', "lcdctl: %s", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	os.MkdirAll(PathLockDir, 0755)
	lock, err := os.OpenFile(PathLockFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		Log.Error('!', "lcdctl: %s", err)
		os.Exit(1)
	}
	defer lock.Close()

	if err := FileLock(lock, true, false); err != nil {
		Log.Error('!', "lcdctl: %s", err)
		os.Exit(1)
	}
	defer FileUnlock(lock)

	Log.Info(' ', "===============================")
	Log.Info(' ', "lcdctl daemon started, pid=%d", os.Getpid())
	defer Log.Info(' ', "lcdctl daemon finished")

	UsbInit()
	defer UsbClose()

	store, err := OpenStateStore()
	if err != nil {
		Log.Error('!', "lcdctl: %s", err)
		os.Exit(1)
	}
	defer store.Close()

	cache := NewSenderCache(NewSgRawExecutor(Conf.ScsiExecutorPath), store)
	defer cache.CloseAll()

	if err := CtrlsockStart(); err != nil {
		Log.Error('!', "lcdctl: %s", err)
		os.Exit(1)
	}
	defer CtrlsockStop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	NewPnPManager(cache).Run(ctx)
}

// cmdSend is a one-shot: discover, get a sender, encode one image,
// send a single frame, exit.
func cmdSend(args []string) {
	if len(args) != 2 {
		usageError("send requires <vid:pid> <image.png>")
	}

	vid, pid, err := parseVidPid(args[0])
	if err != nil {
		usageError("%s", err)
	}

	Console.ToColorConsole()

	if err := ConfLoad(); err != nil {
		fmt.Fprintf(os.Stderr, "send: %s\n", err)
		os.Exit(1)
	}

	UsbInit()
	defer UsbClose()

	var target *DeviceDescriptor
	for _, d := range discover() {
		if d.Vid == vid && d.Pid == pid {
			dd := d
			target = &dd
			break
		}
	}
	if target == nil {
		fmt.Fprintf(os.Stderr, "send: %s\n", ErrDeviceNotFound(args[0]))
		os.Exit(1)
	}

	f, err := os.Open(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "send: %s\n", err)
		os.Exit(1)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "send: %s\n", err)
		os.Exit(1)
	}

	quirks := NewQuirks()
	quirks.PullByHWID(Conf.Quirks, target.Vid, target.Pid)

	store, err := OpenStateStore()
	if err != nil {
		Log.Debug('!', "send: %s: state store unavailable, skipping panel profile cache", err)
	} else {
		defer store.Close()
	}

	cache := NewSenderCache(NewSgRawExecutor(Conf.ScsiExecutorPath), store)
	defer cache.CloseAll()

	sender, err := cache.GetSender(*target, quirks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "send: %s\n", err)
		os.Exit(1)
	}

	result := sender.Result()

	if result.LedStyle != nil {
		fmt.Fprintln(os.Stderr, "send: device is an LED_HID panel; use solid-colour rendering, not image send")
		os.Exit(1)
	}

	profile := PanelProfile{
		Width:       result.Resolution.Width,
		Height:      result.Resolution.Height,
		PixelFormat: result.PixelFormat,
	}
	if result.UseJPEG {
		profile.PixelFormat = PixelFormatJPEG
	}

	job, err := encode(img, profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "send: %s\n", err)
		os.Exit(1)
	}

	if err := cache.SendFrame(*target, quirks, job); err != nil {
		fmt.Fprintf(os.Stderr, "send: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("send: %s: ok\n", target.Key())
}

// cmdHR10 runs the L7 temperature daemon standalone, against the
// first LED_HID device found.
func cmdHR10() {
	err := ConfLoad()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hr10: %s\n", err)
		os.Exit(1)
	}

	Console.ToColorConsole()
	Log.Cc(LogAll, Console)

	UsbInit()
	defer UsbClose()

	var target *DeviceDescriptor
	for _, d := range discover() {
		if d.ImplementationKey == ImplLedHID {
			dd := d
			target = &dd
			break
		}
	}
	if target == nil {
		fmt.Fprintln(os.Stderr, "hr10: no LED_HID device found")
		os.Exit(1)
	}

	store, err := OpenStateStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hr10: %s\n", err)
		os.Exit(1)
	}
	defer store.Close()

	quirks := NewQuirks()
	quirks.PullByHWID(Conf.Quirks, target.Vid, target.Pid)

	cache := NewSenderCache(nil, store)
	defer cache.CloseAll()

	sender, err := cache.GetSender(*target, quirks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hr10: %s\n", err)
		os.Exit(1)
	}

	style := ledStyleDefault(target.DeviceFamilyID)
	if model := quirks.GetModel(); model != "" {
		if s, ok := ledStyleByName(model); ok {
			style = s
		}
	}

	daemon := NewHR10Daemon(sender, style, store, target.Key())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := daemon.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "hr10: %s\n", err)
		os.Exit(1)
	}
}

// themeExportFrames is the length of the synthetic colour-cycle
// animation "theme export" embeds, in lieu of a real capture source.
const themeExportFrames = 8

// themeExportTile is the side length, in pixels, of the synthetic
// animation frames "theme export" encodes.
const themeExportTile = 64

// cmdTheme drives the L6 .tr reader/writer.
func cmdTheme(args []string) {
	if len(args) != 2 {
		usageError("theme requires export|import <file>")
	}

	switch args[0] {
	case "export":
		theme, err := buildExportTheme()
		if err != nil {
			fmt.Fprintf(os.Stderr, "theme: %s\n", err)
			os.Exit(1)
		}

		f, err := os.Create(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "theme: %s\n", err)
			os.Exit(1)
		}
		defer f.Close()

		if err := WriteThemeTr(f, theme); err != nil {
			fmt.Fprintf(os.Stderr, "theme: %s\n", err)
			os.Exit(1)
		}

		fmt.Printf("theme: wrote %s (%d frames)\n", args[1], len(theme.AnimationFrames))

	case "import":
		f, err := os.Open(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "theme: %s\n", err)
			os.Exit(1)
		}
		defer f.Close()

		theme, err := ReadThemeTr(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "theme: %s\n", err)
			os.Exit(1)
		}

		fmt.Printf("overlays: %d\n", len(theme.Overlays))
		fmt.Printf("background_marker: %d\n", theme.BackgroundMarker)
		fmt.Printf("animation_frames: %d\n", len(theme.AnimationFrames))

		totalBytes := sumAnimationBytes(theme.AnimationFrames)
		fmt.Printf("animation payload: %d bytes\n", totalBytes)

	default:
		usageError("theme: unknown sub-command %q", args[0])
	}
}

// buildExportTheme renders a small synthetic colour-cycle animation
// through the L5 pixel pipeline and wraps it as an embedded-animation
// ThemeTr, showing export progress on a console bar.
func buildExportTheme() (*ThemeTr, error) {
	profile := PanelProfile{
		Width:       themeExportTile,
		Height:      themeExportTile,
		PixelFormat: PixelFormatJPEG,
	}

	bars := mpb.New(mpb.WithWidth(48))
	bar := bars.AddBar(int64(themeExportFrames),
		mpb.PrependDecorators(decor.Name("theme export")),
		mpb.AppendDecorators(decor.Percentage()),
	)

	frames := make([]ThemeZtFrame, themeExportFrames)
	for i := 0; i < themeExportFrames; i++ {
		hue := float64(i) / float64(themeExportFrames)
		r, g, b := colorful.Hsv(hue*360, 0.85, 0.95).Clamped().RGB255()

		job, err := solidColour(r, g, b, themeExportTile, themeExportTile, profile)
		if err != nil {
			return nil, err
		}

		frames[i] = ThemeZtFrame{JPEG: job.Bytes, DelayMs: 100}
		bar.Increment()
	}
	bars.Wait()

	return &ThemeTr{
		ShowBackground:   true,
		BackgroundMarker: int32(len(frames)),
		AnimationFrames:  frames,
	}, nil
}

// sumAnimationBytes totals the JPEG payload size of an animation,
// showing progress on a console bar for large imports.
func sumAnimationBytes(frames []ThemeZtFrame) int {
	if len(frames) == 0 {
		return 0
	}

	bars := mpb.New(mpb.WithWidth(48))
	bar := bars.AddBar(int64(len(frames)),
		mpb.PrependDecorators(decor.Name("theme import")),
		mpb.AppendDecorators(decor.Percentage()),
	)

	total := 0
	for _, f := range frames {
		total += len(f.JPEG)
		bar.Increment()
	}
	bars.Wait()

	return total
}

// cmdCheck validates configuration and quirks files, then lists the
// recognised devices currently attached, mirroring the teacher's
// RunCheck mode.
func cmdCheck() {
	Console.ToColorConsole()

	err := ConfLoad()
	if err != nil {
		Console.Error('!', "%s", err)
		os.Exit(1)
	}

	if err := validateConf(); err != nil {
		Console.Error('!', "%s", err)
		os.Exit(1)
	}

	Console.Info(' ', "Configuration files: OK")
	Console.Info(' ', "Quirks sections loaded: %d", len(Conf.Quirks))

	UsbInit()
	defer UsbClose()

	devices := discover()
	if len(devices) == 0 {
		Console.Info(' ', "No known devices found")
		return
	}

	Console.Info(' ', "Known devices:")
	for i, d := range devices {
		Console.Info(' ', " %3d. %s", i+1, d)
	}
}

// parseVidPid parses a "vvvv:pppp" hex selector.
func parseVidPid(s string) (vid, pid uint16, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid selector %q, want vvvv:pppp", s)
	}

	v, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid vendor id %q", parts[0])
	}

	p, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid product id %q", parts[1])
	}

	return uint16(v), uint16(p), nil
}
