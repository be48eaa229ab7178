// Hardware frame types shared by the decoder side and the mapper.

package vaapi

// SurfaceID identifies a VA surface owned by the driver.
type SurfaceID uint32

// ImageID identifies a VA image.
type ImageID uint32

// BufferID identifies a VA buffer.
type BufferID uint32

// VA_INVALID_ID for surfaces, images and buffers.
const (
	InvalidSurfaceID SurfaceID = 0xffffffff
	InvalidImageID   ImageID   = 0xffffffff
	InvalidBufferID  BufferID  = 0xffffffff
)

// ImageParams describes a decoded hardware frame.
type ImageParams struct {
	HWSubformat ImageFormat // pixel layout of the surface contents
	Width       int
	Height      int
}

// Valid reports whether the params describe a mappable frame.
func (p ImageParams) Valid() bool {
	return p.HWSubformat.valid() && p.Width > 0 && p.Height > 0
}

// Surface is an opaque decoded frame living in driver memory.
// The CPU cannot address it; it is referenced by ID only.
type Surface struct {
	ID     SurfaceID
	Params ImageParams

	release func()
}

// NewSurface wraps a driver surface. release, if non-nil, runs once on Release.
func NewSurface(id SurfaceID, params ImageParams, release func()) *Surface {
	return &Surface{ID: id, Params: params, release: release}
}

// Release returns the surface to its allocator. Decoder-owned surfaces
// typically have no release hook and this is a no-op.
func (s *Surface) Release() {
	if s == nil || s.release == nil {
		return
	}
	r := s.release
	s.release = nil
	r()
}

// Image is a VA image derived from a surface on the legacy path.
type Image struct {
	ID        ImageID
	FourCC    FourCC
	Buf       BufferID
	Width     int
	Height    int
	NumPlanes int
	Pitches   [3]uint32
	Offsets   [3]uint32
}

// BufferInfo is the native handle acquired for a VA buffer.
// For DRM PRIME memory, Handle is a DMA-BUF file descriptor owned by the driver.
type BufferInfo struct {
	Handle  uintptr
	Type    uint32
	MemType MemoryType
	MemSize uintptr
}
