package vaapi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMapper(t *testing.T, dev *Device, f ImageFormat) *Mapper {
	t.Helper()
	m, err := dev.NewMapper(ImageParams{HWSubformat: f, Width: 1920, Height: 1080})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func texPlanes(m *Mapper) []int {
	out := make([]int, len(m.Tex))
	for i, t := range m.Tex {
		if ft, ok := t.(*fakeTexture); ok {
			out[i] = ft.plane
		} else {
			out[i] = -1
		}
	}
	return out
}

func TestMapperExportPath(t *testing.T) {
	hw := newFakeHW(FormatNV12)
	in := &fakeLegacyInterop{}
	dev, fds := openTestDevice(t, hw, in)
	m := newTestMapper(t, dev, FormatNV12)

	require.NoError(t, m.Map(hw.surface(FormatNV12, 1920, 1080)))
	assert.True(t, m.Mapped())
	assert.True(t, m.SurfaceAcquired())
	assert.False(t, m.BufferAcquired())
	assert.Equal(t, ExportPathAvailable, m.ExportPath())
	assert.Equal(t, 1, hw.exports)
	assert.Equal(t, 1, hw.syncs)
	assert.Zero(t, hw.derives)
	assert.Zero(t, in.legacyMaps)

	require.Len(t, m.Tex, 2)
	for n, tex := range m.Tex {
		ft := tex.(*fakeTexture)
		assert.Equal(t, n, ft.plane)
		assert.Equal(t, m.PRIME().ObjectFD(n), ft.fd)
	}
	assert.Zero(t, fds.total(), "descriptors must stay open while mapped")

	m.Unmap()
	assert.False(t, m.Mapped())
	assert.False(t, m.SurfaceAcquired())
	assert.Nil(t, m.PRIME())
	assert.Nil(t, m.Surface())
	assert.Equal(t, 2, fds.total())
	fds.requireClosedOnce(t)
	assert.Equal(t, []int{-1, -1}, texPlanes(m))
}

func TestMapperSwapsYV12Chroma(t *testing.T) {
	tests := []struct {
		name      string
		exportErr error
	}{
		{"export", nil},
		{"legacy", &StatusError{Op: "vaExportSurfaceHandle()", Status: StatusUnimplemented}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hw := newFakeHW(FormatYUV420P)
			dev, _ := openTestDevice(t, hw, &fakeLegacyInterop{})
			hw.exportErr = tt.exportErr
			m := newTestMapper(t, dev, FormatYUV420P)

			require.NoError(t, m.Map(hw.surface(FormatYUV420P, 64, 64)))
			assert.Equal(t, []int{0, 2, 1}, texPlanes(m))
		})
	}
}

func TestMapperNoSwapForOtherFormats(t *testing.T) {
	hw := newFakeHW(FormatYUV444P)
	dev, _ := openTestDevice(t, hw, &fakeLegacyInterop{})
	m := newTestMapper(t, dev, FormatYUV444P)

	require.NoError(t, m.Map(hw.surface(FormatYUV444P, 64, 64)))
	assert.Equal(t, []int{0, 1, 2}, texPlanes(m))
}

func TestMapperUnimplementedExportIsSticky(t *testing.T) {
	hw := newFakeHW(FormatNV12)
	in := &fakeLegacyInterop{}
	dev, fds := openTestDevice(t, hw, in)
	hw.exportErr = &StatusError{Op: "vaExportSurfaceHandle()", Status: StatusUnimplemented}
	m := newTestMapper(t, dev, FormatNV12)

	require.NoError(t, m.Map(hw.surface(FormatNV12, 1920, 1080)))
	assert.Equal(t, ExportPathDisabled, m.ExportPath())
	assert.False(t, m.SurfaceAcquired())
	assert.True(t, m.BufferAcquired())
	assert.Equal(t, 1, hw.exports)
	assert.Equal(t, 1, hw.derives)
	m.Unmap()

	require.NoError(t, m.Map(hw.surface(FormatNV12, 1920, 1080)))
	assert.Equal(t, 1, hw.exports, "export must not be retried once unimplemented")
	assert.Equal(t, 2, hw.derives)
	assert.Equal(t, 2, in.legacyMaps)
	m.Unmap()

	assert.Equal(t, 2, hw.bufferReleases)
	assert.Equal(t, 2, hw.imageDestroys)
	assert.Empty(t, hw.liveBuffers)
	assert.Empty(t, hw.liveImages)
	assert.Zero(t, fds.total())
}

func TestMapperOtherExportErrorsRetry(t *testing.T) {
	hw := newFakeHW(FormatNV12)
	dev, _ := openTestDevice(t, hw, &fakeLegacyInterop{})
	hw.exportErr = &StatusError{Op: "vaExportSurfaceHandle()", Status: StatusOperationFailed}
	m := newTestMapper(t, dev, FormatNV12)

	for i := 0; i < 2; i++ {
		require.NoError(t, m.Map(hw.surface(FormatNV12, 64, 64)))
		m.Unmap()
	}
	assert.Equal(t, 2, hw.exports)
	assert.Equal(t, ExportPathAvailable, m.ExportPath())
}

func TestMapperInteropFailureFallsBackToLegacy(t *testing.T) {
	hw := newFakeHW(FormatNV12)
	in := &fakeLegacyInterop{}
	dev, fds := openTestDevice(t, hw, in)
	in.mapErr = errors.New("import rejected")
	m := newTestMapper(t, dev, FormatNV12)

	require.NoError(t, m.Map(hw.surface(FormatNV12, 64, 64)))
	assert.Equal(t, 2, fds.total(), "exported descriptors closed before fallback")
	fds.requireClosedOnce(t)
	assert.False(t, m.SurfaceAcquired())
	assert.True(t, m.BufferAcquired())
	assert.Equal(t, ExportPathAvailable, m.ExportPath())

	m.Unmap()
	assert.Equal(t, 2, fds.total())
	fds.requireClosedOnce(t)
	assert.Equal(t, 1, hw.bufferReleases)
	assert.Equal(t, 1, hw.imageDestroys)
}

func TestMapperWithoutLegacyInterop(t *testing.T) {
	hw := newFakeHW(FormatNV12)
	in := &fakeInterop{}
	dev, fds := openTestDevice(t, hw, in)
	in.mapErr = errors.New("import rejected")
	m := newTestMapper(t, dev, FormatNV12)

	err := m.Map(hw.surface(FormatNV12, 64, 64))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMapFailed)
	assert.ErrorIs(t, err, ErrLegacyUnavailable)
	assert.False(t, m.Mapped())
	assert.False(t, m.SurfaceAcquired())
	assert.False(t, m.BufferAcquired())
	assert.Zero(t, hw.derives)
	assert.Equal(t, 2, fds.total())
	fds.requireClosedOnce(t)
}

func TestMapperLegacyFailures(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(hw *fakeHW, in *fakeLegacyInterop)
		wantReleases int
		wantDestroys int
	}{
		{
			name:  "derive",
			setup: func(hw *fakeHW, in *fakeLegacyInterop) { hw.deriveErr = &StatusError{Status: StatusOperationFailed} },
		},
		{
			name:         "acquire",
			setup:        func(hw *fakeHW, in *fakeLegacyInterop) { hw.acquireErr = &StatusError{Status: StatusOperationFailed} },
			wantDestroys: 1,
		},
		{
			name:         "import",
			setup:        func(hw *fakeHW, in *fakeLegacyInterop) { in.legacyErr = errors.New("bad buffer") },
			wantReleases: 1,
			wantDestroys: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hw := newFakeHW(FormatNV12)
			in := &fakeLegacyInterop{}
			dev, _ := openTestDevice(t, hw, in)
			hw.exportErr = &StatusError{Status: StatusUnimplemented}
			tt.setup(hw, in)
			m := newTestMapper(t, dev, FormatNV12)

			err := m.Map(hw.surface(FormatNV12, 64, 64))
			require.ErrorIs(t, err, ErrMapFailed)
			assert.False(t, m.Mapped())
			assert.False(t, m.SurfaceAcquired())
			assert.False(t, m.BufferAcquired())
			assert.Equal(t, InvalidImageID, m.Image().ID)
			assert.Equal(t, tt.wantReleases, hw.bufferReleases)
			assert.Equal(t, tt.wantDestroys, hw.imageDestroys)
			assert.Empty(t, hw.liveBuffers)
			assert.Empty(t, hw.liveImages)
			assert.Equal(t, []int{-1, -1}, texPlanes(m))
		})
	}
}

func TestMapperSyncFailureIsNotFatal(t *testing.T) {
	hw := newFakeHW(FormatNV12)
	dev, _ := openTestDevice(t, hw, &fakeInterop{})
	hw.syncErr = &StatusError{Status: StatusOperationFailed}
	m := newTestMapper(t, dev, FormatNV12)

	require.NoError(t, m.Map(hw.surface(FormatNV12, 64, 64)))
	assert.True(t, m.SurfaceAcquired())
}

func TestMapperUnmapIsIdempotent(t *testing.T) {
	hw := newFakeHW(FormatNV12)
	in := &fakeLegacyInterop{}
	dev, fds := openTestDevice(t, hw, in)
	m := newTestMapper(t, dev, FormatNV12)
	probeUnmaps := in.unmaps

	m.Unmap()
	assert.Zero(t, hw.driverCalls())
	assert.Equal(t, probeUnmaps, in.unmaps, "unmapping an idle mapper skips the interop")

	require.NoError(t, m.Map(hw.surface(FormatNV12, 64, 64)))
	m.Unmap()
	calls, unmaps := hw.driverCalls(), in.unmaps
	m.Unmap()
	m.Unmap()
	assert.Equal(t, calls, hw.driverCalls())
	assert.Equal(t, unmaps, in.unmaps)
	fds.requireClosedOnce(t)
}

func TestMapperRejectsDoubleMap(t *testing.T) {
	hw := newFakeHW(FormatNV12)
	dev, _ := openTestDevice(t, hw, &fakeInterop{})
	m := newTestMapper(t, dev, FormatNV12)

	require.NoError(t, m.Map(hw.surface(FormatNV12, 64, 64)))
	assert.ErrorIs(t, m.Map(hw.surface(FormatNV12, 64, 64)), ErrAlreadyMapped)
	assert.Equal(t, 1, hw.exports)
}

func TestMapperClose(t *testing.T) {
	hw := newFakeHW(FormatNV12)
	in := &fakeInterop{}
	dev, fds := openTestDevice(t, hw, in)
	m, err := dev.NewMapper(ImageParams{HWSubformat: FormatNV12, Width: 64, Height: 64})
	require.NoError(t, err)
	uninits := in.uninits

	require.NoError(t, m.Map(hw.surface(FormatNV12, 64, 64)))
	m.Close()
	m.Close()
	assert.Equal(t, uninits+1, in.uninits)
	assert.Equal(t, 2, fds.total())
	assert.ErrorIs(t, m.Map(hw.surface(FormatNV12, 64, 64)), ErrClosed)
}

func TestMapperNilSurface(t *testing.T) {
	hw := newFakeHW(FormatNV12)
	dev, _ := openTestDevice(t, hw, &fakeInterop{})
	m := newTestMapper(t, dev, FormatNV12)

	assert.ErrorIs(t, m.Map(nil), ErrMapFailed)
	assert.Zero(t, hw.driverCalls())
}

func TestNewMapperUnsupportedFormat(t *testing.T) {
	hw := newFakeHW(FormatNV12)
	in := &fakeInterop{}
	dev, _ := openTestDevice(t, hw, in)
	inits, uninits := in.inits, in.uninits

	_, err := dev.NewMapper(ImageParams{HWSubformat: FormatP010, Width: 64, Height: 64})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, inits+1, in.inits)
	assert.Equal(t, uninits+1, in.uninits, "interop state must be released on rejection")

	_, err = dev.NewMapper(ImageParams{HWSubformat: FormatNone, Width: 64, Height: 64})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, inits+1, in.inits)
}

func TestNewMapperInitFailure(t *testing.T) {
	hw := newFakeHW(FormatNV12)
	in := &fakeInterop{}
	dev, _ := openTestDevice(t, hw, in)
	in.initErr = errors.New("no GL context")

	_, err := dev.NewMapper(ImageParams{HWSubformat: FormatNV12, Width: 64, Height: 64})
	assert.ErrorIs(t, err, in.initErr)
}

func TestMapperMapsEverySupportedFormat(t *testing.T) {
	all := []ImageFormat{
		FormatNV12, FormatP010, FormatYUV420P, FormatYUV422P, FormatYUV444P,
		FormatYUYV, FormatGray8, FormatBGRA, FormatRGB0,
	}
	hw := newFakeHW(all...)
	dev, fds := openTestDevice(t, hw, &fakeLegacyInterop{})
	require.Equal(t, all, dev.SupportedFormats().Formats())

	for _, f := range dev.SupportedFormats().Formats() {
		t.Run(f.String(), func(t *testing.T) {
			m := newTestMapper(t, dev, f)
			require.NoError(t, m.Map(hw.surface(f, 320, 240)))
			desc, _ := DefaultFormats.Describe(f)
			assert.Len(t, m.Tex, desc.NumPlanes())
			for n, tex := range m.Tex {
				assert.NotNil(t, tex, "plane %d", n)
			}
			m.Unmap()
		})
	}
	fds.requireClosedOnce(t)
}

func TestMapperAfterDeviceClose(t *testing.T) {
	hw := newFakeHW(FormatNV12)
	dev, _ := openTestDevice(t, hw, &fakeInterop{})
	require.NoError(t, dev.Close())

	_, err := dev.NewMapper(ImageParams{HWSubformat: FormatNV12, Width: 64, Height: 64})
	assert.ErrorIs(t, err, ErrClosed)
}
