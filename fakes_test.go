package vaapi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testDisplay Display = 0xd15b1a7

// fakeHW is an in-memory driver. Descriptors it hands out are fake numbers
// starting at 1000 and are never real files; tests install an fdTracker so
// closing them is only recorded.
type fakeHW struct {
	vendor     string
	formats    []ImageFormat
	formatsErr error
	allocErr   map[ImageFormat]error

	exportErr  error
	syncErr    error
	deriveErr  error
	acquireErr error

	surfaces    map[SurfaceID]ImageFormat
	nextSurface SurfaceID
	nextImage   ImageID
	nextFD      int

	exports, syncs, derives, acquires int
	bufferReleases, imageDestroys     int
	surfaceReleases, closes           int
	liveBuffers                       map[BufferID]bool
	liveImages                        map[ImageID]bool
}

func newFakeHW(formats ...ImageFormat) *fakeHW {
	return &fakeHW{
		vendor:      "Fake VA driver 1.0",
		formats:     formats,
		surfaces:    make(map[SurfaceID]ImageFormat),
		nextFD:      1000,
		liveBuffers: make(map[BufferID]bool),
		liveImages:  make(map[ImageID]bool),
	}
}

// resetCounts forgets driver calls made while the device was probing.
func (h *fakeHW) resetCounts() {
	h.exports, h.syncs, h.derives, h.acquires = 0, 0, 0, 0
	h.bufferReleases, h.imageDestroys = 0, 0
}

func (h *fakeHW) driverCalls() int {
	return h.exports + h.syncs + h.derives + h.acquires + h.bufferReleases + h.imageDestroys
}

func (h *fakeHW) fd() int {
	h.nextFD++
	return h.nextFD
}

// surface creates a decoder-owned surface with no release hook.
func (h *fakeHW) surface(f ImageFormat, w, ht int) *Surface {
	h.nextSurface++
	h.surfaces[h.nextSurface] = f
	return NewSurface(h.nextSurface, ImageParams{HWSubformat: f, Width: w, Height: ht}, nil)
}

func (h *fakeHW) Display() Display                     { return testDisplay }
func (h *fakeHW) VendorString() string                 { return h.vendor }
func (h *fakeHW) ValidFormats() ([]ImageFormat, error) { return h.formats, h.formatsErr }

func (h *fakeHW) AllocFrame(f ImageFormat, w, ht int) (*Surface, error) {
	if err := h.allocErr[f]; err != nil {
		return nil, err
	}
	s := h.surface(f, w, ht)
	s.release = func() { h.surfaceReleases++ }
	return s, nil
}

func (h *fakeHW) Close() error {
	h.closes++
	return nil
}

func (h *fakeHW) describe(id SurfaceID) (ImageFormat, FormatDesc, error) {
	f, ok := h.surfaces[id]
	if !ok {
		return FormatNone, FormatDesc{}, &StatusError{Op: "fake", Status: StatusInvalidSurface}
	}
	desc, _ := DefaultFormats.Describe(f)
	return f, desc, nil
}

func (h *fakeHW) ExportSurfaceHandle(id SurfaceID, memType MemoryType, flags ExportFlags) (*PRIMEDescriptor, error) {
	h.exports++
	if memType != MemTypeDRMPrime2 || flags != ExportReadOnly|ExportSeparateLayers {
		return nil, &StatusError{Op: "vaExportSurfaceHandle()", Status: StatusInvalidParameter}
	}
	if h.exportErr != nil {
		return nil, h.exportErr
	}
	f, desc, err := h.describe(id)
	if err != nil {
		return nil, err
	}
	out := &PRIMEDescriptor{FourCC: f.FourCC(), Width: 128, Height: 128}
	for n, p := range desc.Planes {
		drm, ok := LegacyPlaneFormats.Lookup(p.ComponentBytes, p.Components)
		if !ok {
			drm = f.FourCC()
		}
		out.Objects = append(out.Objects, PRIMEObject{FD: NewOwnedFD(h.fd()), Size: 1 << 16, Modifier: drmFormatModInvalid})
		layer := PRIMELayer{DRMFormat: drm, NumPlanes: 1}
		layer.ObjectIndex[0] = uint32(n)
		layer.Pitch[0] = uint32(128 * p.Components * p.ComponentBytes)
		out.Layers = append(out.Layers, layer)
	}
	return out, nil
}

func (h *fakeHW) SyncSurface(id SurfaceID) error {
	h.syncs++
	return h.syncErr
}

func (h *fakeHW) DeriveImage(id SurfaceID) (Image, error) {
	h.derives++
	if h.deriveErr != nil {
		return Image{}, h.deriveErr
	}
	f, desc, err := h.describe(id)
	if err != nil {
		return Image{}, err
	}
	h.nextImage++
	img := Image{
		ID:        h.nextImage,
		FourCC:    f.FourCC(),
		Buf:       BufferID(h.nextImage + 100),
		Width:     128,
		Height:    128,
		NumPlanes: desc.NumPlanes(),
	}
	var off uint32
	for n, p := range desc.Planes {
		w, ht := desc.PlaneSize(n, 128, 128)
		img.Pitches[n] = uint32(w * p.Components * p.ComponentBytes)
		img.Offsets[n] = off
		off += img.Pitches[n] * uint32(ht)
	}
	h.liveImages[img.ID] = true
	return img, nil
}

func (h *fakeHW) AcquireBufferHandle(buf BufferID, memType MemoryType) (BufferInfo, error) {
	h.acquires++
	if h.acquireErr != nil {
		return BufferInfo{}, h.acquireErr
	}
	h.liveBuffers[buf] = true
	return BufferInfo{Handle: uintptr(h.fd()), MemType: memType, MemSize: 1 << 16}, nil
}

func (h *fakeHW) ReleaseBufferHandle(buf BufferID) error {
	h.bufferReleases++
	if !h.liveBuffers[buf] {
		return fmt.Errorf("release of unacquired buffer %d", buf)
	}
	delete(h.liveBuffers, buf)
	return nil
}

func (h *fakeHW) DestroyImage(id ImageID) error {
	h.imageDestroys++
	if !h.liveImages[id] {
		return fmt.Errorf("destroy of unknown image %d", id)
	}
	delete(h.liveImages, id)
	return nil
}

type fakeOpener struct {
	hw     HWDevice
	err    error
	called int
}

func (o *fakeOpener) OpenDevice(d Display) (HWDevice, error) {
	o.called++
	if o.err != nil {
		return nil, o.err
	}
	return o.hw, nil
}

type fakeTexture struct {
	plane int
	fd    int
}

func (t *fakeTexture) Size() (int, int) { return 0, 0 }

// fakeInterop records calls and fills one texture per plane.
type fakeInterop struct {
	mapErr  error
	initErr error

	inits, maps, unmaps, uninits int
}

func (f *fakeInterop) Name() string { return "fake" }

func (f *fakeInterop) Init(m *Mapper, desc FormatDesc) error {
	f.inits++
	return f.initErr
}

func (f *fakeInterop) Map(m *Mapper) error {
	f.maps++
	if f.mapErr != nil {
		return f.mapErr
	}
	prime := m.PRIME()
	if prime == nil {
		return errors.New("no descriptor")
	}
	for n := range prime.Layers {
		m.Tex[n] = &fakeTexture{plane: n, fd: prime.ObjectFD(n)}
	}
	return nil
}

func (f *fakeInterop) Unmap(m *Mapper) {
	f.unmaps++
	for n := range m.Tex {
		m.Tex[n] = nil
	}
}

func (f *fakeInterop) Uninit(m *Mapper) { f.uninits++ }

// fakeLegacyInterop also imports derived image buffers.
type fakeLegacyInterop struct {
	fakeInterop
	legacyErr  error
	legacyMaps int
}

func (f *fakeLegacyInterop) MapLegacy(m *Mapper, buf *BufferInfo, formats *PlaneFormatTable) error {
	f.legacyMaps++
	if f.legacyErr != nil {
		return f.legacyErr
	}
	for n := range m.Tex {
		m.Tex[n] = &fakeTexture{plane: n, fd: int(buf.Handle)}
	}
	return nil
}

type fakeProvider struct {
	name   string
	in     Interop
	ready  bool
	opened int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Open(dev *Device) (Interop, bool) {
	p.opened++
	return p.in, p.ready
}

// fdTracker replaces closeFD and counts closes per descriptor.
type fdTracker struct {
	closed map[int]int
}

func trackFDs(t *testing.T) *fdTracker {
	t.Helper()
	tr := &fdTracker{closed: make(map[int]int)}
	old := closeFD
	closeFD = func(fd int) error {
		tr.closed[fd]++
		return nil
	}
	t.Cleanup(func() { closeFD = old })
	return tr
}

func (tr *fdTracker) total() int {
	n := 0
	for _, c := range tr.closed {
		n += c
	}
	return n
}

func (tr *fdTracker) requireClosedOnce(t *testing.T) {
	t.Helper()
	for fd, c := range tr.closed {
		require.Equal(t, 1, c, "fd %d closed %d times", fd, c)
	}
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func drmResources() ResourceMap {
	return ResourceMap{ResourceDRMParams: &DRMParams{RenderFD: 3}}
}

func drmBackends() []DisplayBackend {
	return []DisplayBackend{DRMBackend{GetDisplay: func(int) Display { return testDisplay }}}
}

func testOptions(hw HWDevice, in Interop) Options {
	return Options{
		Resources:       drmResources(),
		DisplayBackends: drmBackends(),
		Interops:        []InteropProvider{&fakeProvider{name: "fake", in: in, ready: true}},
		Opener:          &fakeOpener{hw: hw},
		Logger:          nopLogger(),
	}
}

// openTestDevice opens a device over hw and in, with descriptor closes tracked.
func openTestDevice(t *testing.T, hw *fakeHW, in Interop) (*Device, *fdTracker) {
	t.Helper()
	tr := trackFDs(t)
	dev, err := Open(context.Background(), testOptions(hw, in))
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	hw.resetCounts()
	tr.closed = make(map[int]int)
	return dev, tr
}
