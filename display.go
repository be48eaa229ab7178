package vaapi

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Native resource names a renderer can be queried for.
const (
	ResourceX11       = "x11"
	ResourceWayland   = "wl"
	ResourceDRMParams = "drm_params"
)

// X11Display is an Xlib Display* pointer.
type X11Display uintptr

// WaylandDisplay is a wl_display* pointer.
type WaylandDisplay uintptr

// DRMParams describes a DRM render node opened by the renderer.
type DRMParams struct {
	RenderFD int // -1 when no render node is available
}

// ResourceProvider returns native windowing resources by name, or nil when
// the renderer has none of that kind.
type ResourceProvider interface {
	NativeResource(name string) any
}

// ResourceMap is a ResourceProvider backed by a map.
type ResourceMap map[string]any

// NativeResource implements ResourceProvider.
func (m ResourceMap) NativeResource(name string) any {
	if m == nil {
		return nil
	}
	return m[name]
}

// DisplayBackend opens a VA display from one kind of native resource.
type DisplayBackend interface {
	Name() string
	ResourceName() string
	// OpenDisplay returns zero when res cannot back a VA display.
	OpenDisplay(res any) Display
}

// X11Backend opens VA displays on Xlib connections.
type X11Backend struct {
	// GetDisplay defaults to vaGetDisplay from libva-x11.
	GetDisplay func(X11Display) Display
}

func (X11Backend) Name() string         { return "x11" }
func (X11Backend) ResourceName() string { return ResourceX11 }

func (b X11Backend) OpenDisplay(res any) Display {
	x11, ok := res.(X11Display)
	if !ok || x11 == 0 {
		return 0
	}
	get := b.GetDisplay
	if get == nil {
		get = GetDisplayX11
	}
	return get(x11)
}

// WaylandBackend opens VA displays on Wayland connections.
type WaylandBackend struct {
	// GetDisplay defaults to vaGetDisplayWl from libva-wayland.
	GetDisplay func(WaylandDisplay) Display
}

func (WaylandBackend) Name() string         { return "wayland" }
func (WaylandBackend) ResourceName() string { return ResourceWayland }

func (b WaylandBackend) OpenDisplay(res any) Display {
	wl, ok := res.(WaylandDisplay)
	if !ok || wl == 0 {
		return 0
	}
	get := b.GetDisplay
	if get == nil {
		get = GetDisplayWayland
	}
	return get(wl)
}

// DRMBackend opens VA displays on DRM render nodes.
type DRMBackend struct {
	// GetDisplay defaults to vaGetDisplayDRM from libva-drm.
	GetDisplay func(fd int) Display
}

func (DRMBackend) Name() string         { return "drm" }
func (DRMBackend) ResourceName() string { return ResourceDRMParams }

func (b DRMBackend) OpenDisplay(res any) Display {
	var params *DRMParams
	switch r := res.(type) {
	case *DRMParams:
		params = r
	case DRMParams:
		params = &r
	}
	if params == nil || params.RenderFD < 0 {
		return 0
	}
	get := b.GetDisplay
	if get == nil {
		get = GetDisplayDRM
	}
	return get(params.RenderFD)
}

// DefaultDisplayBackends returns the display backends in priority order.
func DefaultDisplayBackends() []DisplayBackend {
	return []DisplayBackend{X11Backend{}, WaylandBackend{}, DRMBackend{}}
}

// DisplayBackendsByName selects backends from names, keeping the given order.
func DisplayBackendsByName(names []string) ([]DisplayBackend, error) {
	var out []DisplayBackend
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "x11":
			out = append(out, X11Backend{})
		case "wayland", "wl":
			out = append(out, WaylandBackend{})
		case "drm":
			out = append(out, DRMBackend{})
		default:
			return nil, fmt.Errorf("unknown display backend %q", name)
		}
	}
	return out, nil
}

// AcquireDisplay tries each backend in order and returns the first display
// that opens, with the backend's name. A zero Display means none did; that is
// an expected outcome on platforms without VA-API.
func AcquireDisplay(rp ResourceProvider, backends []DisplayBackend, log zerolog.Logger) (Display, string) {
	if rp == nil {
		return 0, ""
	}
	for _, b := range backends {
		log.Debug().Str("backend", b.Name()).Msgf("Trying to open a %s VA display", b.Name())
		res := rp.NativeResource(b.ResourceName())
		if res == nil {
			continue
		}
		if d := b.OpenDisplay(res); d != 0 {
			return d, b.Name()
		}
	}
	return 0, ""
}
