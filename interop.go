package vaapi

import "github.com/rs/zerolog"

// Texture is a renderer texture aliasing one plane of a mapped surface.
type Texture interface {
	Size() (width, height int)
}

// Interop translates mapped surfaces into renderer textures.
//
// Map reads m.PRIME() and fills m.Tex. A failing Map must drop any partial
// renderer state itself. Unmap must tolerate partially mapped mappers.
type Interop interface {
	Name() string
	Init(m *Mapper, desc FormatDesc) error
	Map(m *Mapper) error
	Unmap(m *Mapper)
	Uninit(m *Mapper)
}

// LegacyInterop is implemented by interops that can import a buffer handle
// acquired from a derived image. Without it the legacy path is unavailable.
type LegacyInterop interface {
	MapLegacy(m *Mapper, buf *BufferInfo, formats *PlaneFormatTable) error
}

// InteropProvider creates an Interop bound to a device when the renderer
// can serve one.
type InteropProvider interface {
	Name() string
	Open(dev *Device) (Interop, bool)
}

// selectInterop adopts the first ready provider. Later providers are not tried.
func selectInterop(providers []InteropProvider, dev *Device, log zerolog.Logger) Interop {
	for _, p := range providers {
		if p == nil {
			continue
		}
		if in, ok := p.Open(dev); ok && in != nil {
			log.Debug().Str("interop", p.Name()).Msg("Using renderer interop")
			return in
		}
		log.Debug().Str("interop", p.Name()).Msg("Renderer interop not available")
	}
	return nil
}

// PlaneFormatTable maps (bytes per component, component count) to the DRM
// fourcc used to import one plane of a legacy buffer. Zero entries are
// untested or impossible combinations.
type PlaneFormatTable [8]FourCC

// Lookup returns the fourcc for a plane with the given component size and count.
func (t *PlaneFormatTable) Lookup(componentBytes, components int) (FourCC, bool) {
	if componentBytes < 1 || componentBytes > 2 || components < 1 || components > 4 {
		return 0, false
	}
	f := t[(componentBytes-1)*4+components-1]
	return f, f != 0
}

// LegacyPlaneFormats is the table handed to LegacyInterop.MapLegacy.
var LegacyPlaneFormats = PlaneFormatTable{
	// 1 byte per component, 1-4 components
	DRMFormatR8,
	DRMFormatGR88,
	0, // untested (RGB888)
	0, // untested (RGBA8888)
	// 2 bytes per component, 1-4 components
	DRMFormatR16,
	DRMFormatGR32,
	0,
	0,
}
