package vaapi

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// DMABufPlane locates one plane inside an exported DMA-BUF.
type DMABufPlane struct {
	FD        int
	DRMFormat FourCC
	Offset    uint32
	Pitch     uint32
	Modifier  uint64
}

// GPUTexture is an imported GPU-API texture.
type GPUTexture interface {
	Texture
	Destroy()
}

// GPUImporter is the renderer side of the GPU-API interop.
type GPUImporter interface {
	// SupportsDMABuf reports whether external DMA-BUF memory can be imported.
	SupportsDMABuf() bool
	// ImportDMABuf creates a texture aliasing plane. The importer must not
	// close plane.FD.
	ImportDMABuf(desc *gputypes.TextureDescriptor, plane DMABufPlane) (GPUTexture, error)
}

// GPUProvider offers the GPU-API interop. It has no legacy path.
type GPUProvider struct {
	Importer GPUImporter
}

func (GPUProvider) Name() string { return "gpu" }

func (p GPUProvider) Open(dev *Device) (Interop, bool) {
	if p.Importer == nil || !p.Importer.SupportsDMABuf() {
		return nil, false
	}
	return &GPUInterop{importer: p.Importer}, true
}

// GPUInterop imports each exported layer as a sampled GPU texture.
type GPUInterop struct {
	importer GPUImporter
}

type gpuPlanes struct {
	formats []gputypes.TextureFormat
}

// PlaneTextureFormat returns the texture format that samples a plane.
func PlaneTextureFormat(p PlaneDesc) (gputypes.TextureFormat, bool) {
	switch {
	case p.ComponentBytes == 1 && p.Components == 1:
		return gputypes.TextureFormatR8Unorm, true
	case p.ComponentBytes == 1 && p.Components == 2:
		return gputypes.TextureFormatRG8Unorm, true
	case p.ComponentBytes == 1 && p.Components == 4:
		return gputypes.TextureFormatRGBA8Unorm, true
	case p.ComponentBytes == 2 && p.Components == 1:
		return gputypes.TextureFormatR16Unorm, true
	case p.ComponentBytes == 2 && p.Components == 2:
		return gputypes.TextureFormatRG16Unorm, true
	default:
		return gputypes.TextureFormatUndefined, false
	}
}

func (g *GPUInterop) Name() string { return "gpu" }

func (g *GPUInterop) Init(m *Mapper, desc FormatDesc) error {
	st := &gpuPlanes{}
	for n, p := range desc.Planes {
		f, ok := PlaneTextureFormat(p)
		if !ok {
			return fmt.Errorf("gpu interop: no texture format for plane %d of %s", n, desc.Format)
		}
		st.formats = append(st.formats, f)
	}
	m.State = st
	return nil
}

func (g *GPUInterop) Map(m *Mapper) error {
	st, ok := m.State.(*gpuPlanes)
	if !ok {
		return errors.New("gpu interop: mapper not initialized")
	}
	prime := m.PRIME()
	if prime == nil {
		return errors.New("gpu interop: no exported surface")
	}
	if len(prime.Layers) != len(st.formats) {
		return fmt.Errorf("gpu interop: %d layers for %d planes", len(prime.Layers), len(st.formats))
	}

	desc := m.Desc()
	p := m.Params()
	for n, layer := range prime.Layers {
		w, h := desc.PlaneSize(n, p.Width, p.Height)
		td := &gputypes.TextureDescriptor{
			Label: fmt.Sprintf("vaapi plane %d", n),
			Size: gputypes.Extent3D{
				Width:              uint32(w),
				Height:             uint32(h),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        st.formats[n],
			Usage:         gputypes.TextureUsageTextureBinding,
		}
		plane := DMABufPlane{
			FD:        prime.ObjectFD(n),
			DRMFormat: layer.DRMFormat,
			Offset:    layer.Offset[0],
			Pitch:     layer.Pitch[0],
			Modifier:  prime.Modifier(n),
		}
		tex, err := g.importer.ImportDMABuf(td, plane)
		if err != nil {
			g.Unmap(m)
			return fmt.Errorf("gpu interop: importing plane %d: %w", n, err)
		}
		m.Tex[n] = tex
	}
	return nil
}

func (g *GPUInterop) Unmap(m *Mapper) {
	for n, t := range m.Tex {
		if tex, ok := t.(GPUTexture); ok && tex != nil {
			tex.Destroy()
		}
		m.Tex[n] = nil
	}
}

func (g *GPUInterop) Uninit(m *Mapper) {
	m.State = nil
}
