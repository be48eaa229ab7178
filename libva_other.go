//go:build !linux

package vaapi

// IsLibVAAvailable reports whether libva could be loaded.
func IsLibVAAvailable() bool { return false }

// GetDisplayDRM opens a VA display on a DRM render node fd.
func GetDisplayDRM(fd int) Display { return 0 }

// GetDisplayX11 opens a VA display on an Xlib connection.
func GetDisplayX11(x11 X11Display) Display { return 0 }

// GetDisplayWayland opens a VA display on a Wayland connection.
func GetDisplayWayland(wl WaylandDisplay) Display { return 0 }

// LibVA opens devices through the system libva.
type LibVA struct{}

// OpenDevice always fails: VA-API is Linux-only.
func (LibVA) OpenDevice(d Display) (HWDevice, error) {
	return nil, ErrLibraryUnavailable
}
