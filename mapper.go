package vaapi

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ExportPath records whether the PRIME export path is worth trying.
type ExportPath uint8

const (
	ExportPathAvailable ExportPath = iota
	// ExportPathDisabled is entered once the driver reports export as
	// unimplemented and is never left.
	ExportPathDisabled
)

func (p ExportPath) String() string {
	switch p {
	case ExportPathAvailable:
		return "available"
	case ExportPathDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Mapper binds decoded surfaces to renderer textures, one frame at a time.
// It is reused across frames and is not safe for concurrent use.
type Mapper struct {
	dev *Device
	log zerolog.Logger

	params ImageParams
	desc   FormatDesc

	// Tex holds one texture per plane while mapped. Interops fill it.
	Tex []Texture
	// State is private to the interop.
	State any

	src             *Surface
	prime           *PRIMEDescriptor
	image           Image
	buffer          BufferInfo
	surfaceAcquired bool
	bufferAcquired  bool
	mapped          bool
	closed          bool
	exportPath      ExportPath
}

// NewMapper creates a mapper for frames with the given params. The
// destination format is the surface's hardware subformat.
func (d *Device) NewMapper(params ImageParams) (*Mapper, error) {
	if d.closed {
		return nil, ErrClosed
	}
	desc, ok := d.describer.Describe(params.HWSubformat)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, params.HWSubformat)
	}

	m := &Mapper{
		dev:    d,
		log:    d.log.With().Str("format", params.HWSubformat.String()).Logger(),
		params: params,
		desc:   desc,
		Tex:    make([]Texture, desc.NumPlanes()),
		image:  Image{ID: InvalidImageID, Buf: InvalidBufferID},
	}

	if err := d.interop.Init(m, desc); err != nil {
		return nil, fmt.Errorf("interop %s init: %w", d.interop.Name(), err)
	}

	if !d.probing && !d.supported.Contains(params.HWSubformat) {
		m.log.Error().Msgf("Unsupported VA image format %s", params.HWSubformat)
		d.interop.Uninit(m)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, params.HWSubformat)
	}
	return m, nil
}

// Params returns the source image params.
func (m *Mapper) Params() ImageParams { return m.params }

// Desc returns the destination plane layout.
func (m *Mapper) Desc() FormatDesc { return m.desc }

// Surface returns the surface being mapped, or nil.
func (m *Mapper) Surface() *Surface { return m.src }

// PRIME returns the exported descriptor while the export path holds one.
func (m *Mapper) PRIME() *PRIMEDescriptor {
	if !m.surfaceAcquired {
		return nil
	}
	return m.prime
}

// Image returns the derived image on the legacy path.
func (m *Mapper) Image() Image { return m.image }

// SurfaceAcquired reports whether exported object fds are held.
func (m *Mapper) SurfaceAcquired() bool { return m.surfaceAcquired }

// BufferAcquired reports whether a legacy buffer handle is held.
func (m *Mapper) BufferAcquired() bool { return m.bufferAcquired }

// Mapped reports whether the last Map succeeded and was not yet unmapped.
func (m *Mapper) Mapped() bool { return m.mapped }

// ExportPath returns the export path state.
func (m *Mapper) ExportPath() ExportPath { return m.exportPath }

// Map imports s into m.Tex. On failure every native resource acquired by
// this call has been released and both acquisition flags are clear.
func (m *Mapper) Map(s *Surface) error {
	if m.closed {
		return ErrClosed
	}
	if m.mapped {
		return ErrAlreadyMapped
	}
	if s == nil {
		return fmt.Errorf("%w: nil surface", ErrMapFailed)
	}

	m.src = s
	if err := m.mapSurface(); err != nil {
		m.src = nil
		if m.dev.probing {
			m.log.Debug().Err(err).Msg("Mapping VA surface failed")
		} else {
			m.log.Error().Err(err).Msg("Mapping VA surface failed")
		}
		return fmt.Errorf("%w: %w", ErrMapFailed, err)
	}
	m.mapped = true
	return nil
}

func (m *Mapper) mapSurface() error {
	var exportErr error
	if m.exportPath == ExportPathAvailable {
		exportErr = m.mapExported()
		if exportErr == nil {
			return nil
		}
	}

	legacy, ok := m.dev.interop.(LegacyInterop)
	if !ok {
		m.release()
		if exportErr != nil {
			return fmt.Errorf("%w (export: %w)", ErrLegacyUnavailable, exportErr)
		}
		return ErrLegacyUnavailable
	}

	if err := m.mapDerived(legacy); err != nil {
		m.release()
		return err
	}
	return nil
}

// mapExported is the DRM PRIME export path.
func (m *Mapper) mapExported() error {
	hw := m.dev.hw
	desc, err := hw.ExportSurfaceHandle(m.src.ID, MemTypeDRMPrime2, ExportReadOnly|ExportSeparateLayers)
	if err != nil {
		m.driverEvent(m.dev.probing).Err(err).Msg("vaExportSurfaceHandle() failed")
		if errors.Is(err, StatusUnimplemented) {
			m.exportPath = ExportPathDisabled
			m.log.Debug().Msg("Surface export not implemented, using derived images from now on")
		}
		return err
	}
	m.prime = desc
	m.surfaceAcquired = true

	// A failed sync is not fatal; the renderer side still serializes access.
	if err := hw.SyncSurface(m.src.ID); err != nil {
		m.log.Warn().Err(err).Msg("vaSyncSurface() failed")
	}

	if err := m.dev.interop.Map(m); err != nil {
		m.closePRIME()
		return fmt.Errorf("interop %s map: %w", m.dev.interop.Name(), err)
	}

	if desc.FourCC == FourCCYV12 {
		m.swapChroma()
	}
	return nil
}

// mapDerived is the legacy derive-image/acquire-buffer path.
func (m *Mapper) mapDerived(legacy LegacyInterop) error {
	hw := m.dev.hw
	img, err := hw.DeriveImage(m.src.ID)
	if err != nil {
		m.driverEvent(m.dev.probing).Err(err).Msg("vaDeriveImage() failed")
		return err
	}
	m.image = img

	info, err := hw.AcquireBufferHandle(img.Buf, MemTypeDRMPrime)
	if err != nil {
		m.driverEvent(m.dev.probing).Err(err).Msg("vaAcquireBufferHandle() failed")
		return err
	}
	m.buffer = info
	m.bufferAcquired = true

	if err := legacy.MapLegacy(m, &m.buffer, &LegacyPlaneFormats); err != nil {
		return fmt.Errorf("interop %s legacy map: %w", m.dev.interop.Name(), err)
	}

	if img.FourCC == FourCCYV12 {
		m.swapChroma()
	}
	return nil
}

// YV12 reports V before U; renderers expect U at plane 1.
func (m *Mapper) swapChroma() {
	if len(m.Tex) >= 3 {
		m.Tex[1], m.Tex[2] = m.Tex[2], m.Tex[1]
	}
}

func (m *Mapper) driverEvent(quiet bool) *zerolog.Event {
	if quiet {
		return m.log.Debug()
	}
	return m.log.Error()
}

func (m *Mapper) closePRIME() {
	if m.prime != nil {
		if err := m.prime.closeObjects(); err != nil {
			m.log.Warn().Err(err).Msg("Closing exported DMA-BUF failed")
		}
	}
	m.prime = nil
	m.surfaceAcquired = false
}

// release tears down in order: renderer bindings first, since they may still
// reference native memory, then exported fds, buffer handle and image.
func (m *Mapper) release() {
	m.dev.interop.Unmap(m)

	if m.surfaceAcquired {
		m.closePRIME()
	}

	hw := m.dev.hw
	if m.bufferAcquired {
		if err := hw.ReleaseBufferHandle(m.image.Buf); err != nil {
			m.log.Error().Err(err).Msg("vaReleaseBufferHandle() failed")
		}
		m.buffer = BufferInfo{}
		m.bufferAcquired = false
	}
	if m.image.ID != InvalidImageID {
		if err := hw.DestroyImage(m.image.ID); err != nil {
			m.log.Error().Err(err).Msg("vaDestroyImage() failed")
		}
		m.image = Image{ID: InvalidImageID, Buf: InvalidBufferID}
	}
}

// Unmap releases the current frame. It is a no-op when nothing is mapped.
func (m *Mapper) Unmap() {
	if !m.mapped {
		return
	}
	m.release()
	m.src = nil
	m.mapped = false
}

// Close unmaps and releases interop state. Safe to call more than once.
func (m *Mapper) Close() {
	if m.closed {
		return
	}
	m.Unmap()
	m.dev.interop.Uninit(m)
	m.closed = true
}
