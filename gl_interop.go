package vaapi

import (
	"errors"
	"fmt"
)

// EGL_EXT_image_dma_buf_import attribute names.
const (
	eglNone                   = 0x3038
	eglWidth                  = 0x3057
	eglHeight                 = 0x3056
	eglLinuxDRMFourCC         = 0x3271
	eglDMABufPlane0FD         = 0x3272
	eglDMABufPlane0Offset     = 0x3273
	eglDMABufPlane0Pitch      = 0x3274
	eglDMABufPlane0ModifierLo = 0x3443
	eglDMABufPlane0ModifierHi = 0x3444
)

// DRM_FORMAT_MOD_INVALID
const drmFormatModInvalid = 0x00ffffffffffffff

// EGLImage is an EGLImageKHR handle.
type EGLImage uintptr

// EGLImporter is the renderer side of the GL interop: it owns the EGL
// display and GL context.
type EGLImporter interface {
	// DMABufImport reports EGL_EXT_image_dma_buf_import.
	DMABufImport() bool
	// DMABufModifiers reports EGL_EXT_image_dma_buf_import_modifiers.
	DMABufModifiers() bool
	CreateImage(attribs []int32) (EGLImage, error)
	DestroyImage(img EGLImage)
	// BindImage attaches img to a new GL_TEXTURE_2D and returns its name.
	BindImage(img EGLImage) (uint32, error)
	DeleteTexture(name uint32)
}

// GLTexture is a GL texture backed by an EGLImage.
type GLTexture struct {
	Name   uint32
	Image  EGLImage
	Width  int
	Height int
}

func (t *GLTexture) Size() (int, int) { return t.Width, t.Height }

// GLProvider offers the EGL/GL interop when the importer supports DMA-BUF import.
type GLProvider struct {
	Importer EGLImporter
}

func (GLProvider) Name() string { return "gl" }

func (p GLProvider) Open(dev *Device) (Interop, bool) {
	if p.Importer == nil || !p.Importer.DMABufImport() {
		return nil, false
	}
	return &GLInterop{egl: p.Importer}, true
}

// GLInterop imports surfaces as one EGLImage per plane. It supports both the
// export path and the legacy buffer-handle path.
type GLInterop struct {
	egl EGLImporter
}

var errGLPlanes = errors.New("gl interop: unsupported plane layout")

func (g *GLInterop) Name() string { return "gl" }

func (g *GLInterop) Init(m *Mapper, desc FormatDesc) error {
	if desc.NumPlanes() < 1 || desc.NumPlanes() > 4 {
		return fmt.Errorf("%w: %d planes", errGLPlanes, desc.NumPlanes())
	}
	return nil
}

func (g *GLInterop) Map(m *Mapper) error {
	prime := m.PRIME()
	if prime == nil {
		return errors.New("gl interop: no exported surface")
	}
	desc := m.Desc()
	if len(prime.Layers) != desc.NumPlanes() {
		return fmt.Errorf("%w: %d layers for %d planes", errGLPlanes, len(prime.Layers), desc.NumPlanes())
	}

	p := m.Params()
	for n, layer := range prime.Layers {
		// Separate layers carry exactly one plane each.
		if layer.NumPlanes > 1 {
			g.Unmap(m)
			return fmt.Errorf("%w: layer %d has %d planes", errGLPlanes, n, layer.NumPlanes)
		}
		w, h := desc.PlaneSize(n, p.Width, p.Height)
		attribs := []int32{
			eglLinuxDRMFourCC, int32(layer.DRMFormat),
			eglWidth, int32(w),
			eglHeight, int32(h),
			eglDMABufPlane0FD, int32(prime.ObjectFD(n)),
			eglDMABufPlane0Offset, int32(layer.Offset[0]),
			eglDMABufPlane0Pitch, int32(layer.Pitch[0]),
		}
		if mod := prime.Modifier(n); g.egl.DMABufModifiers() && mod != drmFormatModInvalid {
			attribs = append(attribs,
				eglDMABufPlane0ModifierLo, int32(uint32(mod)),
				eglDMABufPlane0ModifierHi, int32(uint32(mod>>32)))
		}
		attribs = append(attribs, eglNone)

		if err := g.bindPlane(m, n, attribs, w, h); err != nil {
			g.Unmap(m)
			return err
		}
	}
	return nil
}

func (g *GLInterop) MapLegacy(m *Mapper, buf *BufferInfo, formats *PlaneFormatTable) error {
	img := m.Image()
	desc := m.Desc()
	p := m.Params()
	if desc.NumPlanes() > len(img.Offsets) {
		return fmt.Errorf("%w: %d planes", errGLPlanes, desc.NumPlanes())
	}

	for n, plane := range desc.Planes {
		fourcc, ok := formats.Lookup(plane.ComponentBytes, plane.Components)
		if !ok {
			g.Unmap(m)
			return fmt.Errorf("%w: no DRM format for %d x %d-byte components", errGLPlanes, plane.Components, plane.ComponentBytes)
		}
		w, h := desc.PlaneSize(n, p.Width, p.Height)
		attribs := []int32{
			eglLinuxDRMFourCC, int32(fourcc),
			eglWidth, int32(w),
			eglHeight, int32(h),
			eglDMABufPlane0FD, int32(buf.Handle),
			eglDMABufPlane0Offset, int32(img.Offsets[n]),
			eglDMABufPlane0Pitch, int32(img.Pitches[n]),
			eglNone,
		}
		if err := g.bindPlane(m, n, attribs, w, h); err != nil {
			g.Unmap(m)
			return err
		}
	}
	return nil
}

func (g *GLInterop) bindPlane(m *Mapper, n int, attribs []int32, w, h int) error {
	img, err := g.egl.CreateImage(attribs)
	if err != nil {
		return fmt.Errorf("gl interop: creating EGLImage for plane %d: %w", n, err)
	}
	name, err := g.egl.BindImage(img)
	if err != nil {
		g.egl.DestroyImage(img)
		return fmt.Errorf("gl interop: binding plane %d: %w", n, err)
	}
	m.Tex[n] = &GLTexture{Name: name, Image: img, Width: w, Height: h}
	return nil
}

func (g *GLInterop) Unmap(m *Mapper) {
	for n, t := range m.Tex {
		if tex, ok := t.(*GLTexture); ok && tex != nil {
			g.egl.DeleteTexture(tex.Name)
			g.egl.DestroyImage(tex.Image)
		}
		m.Tex[n] = nil
	}
}

func (g *GLInterop) Uninit(m *Mapper) {}
