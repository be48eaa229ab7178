//go:build linux

package native

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/ebitengine/purego"
	"github.com/rs/zerolog"
	"github.com/thesyncim/vaapi"
)

var (
	xlibOnce      sync.Once
	xlibErr       error
	xOpenDisplay  func(name string) uintptr
	xCloseDisplay func(dpy uintptr) int32
	wlOnce        sync.Once
	wlErr         error
	wlConnect     func(name uintptr) uintptr
	wlDisconnect  func(dpy uintptr)
)

func loadXlib() error {
	xlibOnce.Do(func() {
		lib, err := purego.Dlopen("libX11.so.6", purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			xlibErr = fmt.Errorf("failed to load libX11: %w", err)
			return
		}
		purego.RegisterLibFunc(&xOpenDisplay, lib, "XOpenDisplay")
		purego.RegisterLibFunc(&xCloseDisplay, lib, "XCloseDisplay")
	})
	return xlibErr
}

func loadWayland() error {
	wlOnce.Do(func() {
		lib, err := purego.Dlopen("libwayland-client.so.0", purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			wlErr = fmt.Errorf("failed to load libwayland-client: %w", err)
			return
		}
		purego.RegisterLibFunc(&wlConnect, lib, "wl_display_connect")
		purego.RegisterLibFunc(&wlDisconnect, lib, "wl_display_disconnect")
	})
	return wlErr
}

// openX11 checks the X server with a protocol-level handshake before handing
// an Xlib connection to libva. The display xgb validated, including its
// default screen, is the one Xlib opens.
func openX11(log zerolog.Logger) (any, func() error, error) {
	name := os.Getenv("DISPLAY")
	if name == "" {
		return nil, nil, errors.New("DISPLAY is not set")
	}
	conn, err := xgb.NewConnDisplay(name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	setup := xproto.Setup(conn)
	screen, err := x11Screen(setup, conn.DefaultScreen)
	conn.Close()
	if err != nil {
		return nil, nil, err
	}
	log.Debug().
		Str("vendor", setup.Vendor).
		Uint32("release", setup.ReleaseNumber).
		Int("screen", conn.DefaultScreen).
		Uint16("width", screen.WidthInPixels).
		Uint16("height", screen.HeightInPixels).
		Msg("Connected to X server")

	if err := loadXlib(); err != nil {
		return nil, nil, err
	}
	dpy := xOpenDisplay(name)
	if dpy == 0 {
		return nil, nil, fmt.Errorf("XOpenDisplay(%q) failed", name)
	}
	return vaapi.X11Display(dpy), func() error {
		xCloseDisplay(dpy)
		return nil
	}, nil
}

// x11Screen returns the screen a display name selects. A server without
// that screen, or one whose root is not at least 24 bits deep, cannot
// present decoded frames.
func x11Screen(setup *xproto.SetupInfo, n int) (*xproto.ScreenInfo, error) {
	if setup == nil || n < 0 || n >= len(setup.Roots) {
		return nil, fmt.Errorf("X server has no screen %d", n)
	}
	screen := &setup.Roots[n]
	if screen.RootDepth < 24 {
		return nil, fmt.Errorf("X screen %d has depth %d", n, screen.RootDepth)
	}
	return screen, nil
}

func openWayland() (any, func() error, error) {
	if os.Getenv("WAYLAND_DISPLAY") == "" && os.Getenv("WAYLAND_SOCKET") == "" {
		return nil, nil, errors.New("WAYLAND_DISPLAY is not set")
	}
	if err := loadWayland(); err != nil {
		return nil, nil, err
	}
	dpy := wlConnect(0)
	if dpy == 0 {
		return nil, nil, errors.New("wl_display_connect failed")
	}
	return vaapi.WaylandDisplay(dpy), func() error {
		wlDisconnect(dpy)
		return nil
	}, nil
}
