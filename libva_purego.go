//go:build linux

package vaapi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	libvaOnce    sync.Once
	libvaHandle  uintptr
	libvaInitErr error
)

// libva function pointers
var (
	vaInitialize          func(dpy uintptr, major, minor uintptr) int32
	vaTerminate           func(dpy uintptr) int32
	vaQueryVendorString   func(dpy uintptr) string
	vaErrorStr            func(status int32) string
	vaMaxNumImageFormats  func(dpy uintptr) int32
	vaQueryImageFormats   func(dpy uintptr, formats, numFormats uintptr) int32
	vaCreateSurfaces      func(dpy uintptr, rtFormat, width, height uint32, surfaces uintptr, numSurfaces uint32, attribs uintptr, numAttribs uint32) int32
	vaDestroySurfaces     func(dpy uintptr, surfaces uintptr, numSurfaces int32) int32
	vaSyncSurface         func(dpy uintptr, surface uint32) int32
	vaDeriveImage         func(dpy uintptr, surface uint32, image uintptr) int32
	vaDestroyImage        func(dpy uintptr, image uint32) int32
	vaAcquireBufferHandle func(dpy uintptr, buf uint32, info uintptr) int32
	vaReleaseBufferHandle func(dpy uintptr, buf uint32) int32

	// Optional: absent before VA-API 1.1.
	vaExportSurfaceHandle func(dpy uintptr, surface, memType, flags uint32, descriptor uintptr) int32
)

// Window-system entry points live in separate libraries.
var (
	vaGetDisplayDRM func(fd int32) uintptr
	vaGetDisplayX11 func(x11 uintptr) uintptr
	vaGetDisplayWl  func(wl uintptr) uintptr

	libvaDRM = &vaLib{names: []string{"libva-drm.so.2", "libva-drm.so"}, symbol: "vaGetDisplayDRM", fn: &vaGetDisplayDRM}
	libvaX11 = &vaLib{names: []string{"libva-x11.so.2", "libva-x11.so"}, symbol: "vaGetDisplay", fn: &vaGetDisplayX11}
	libvaWl  = &vaLib{names: []string{"libva-wayland.so.2", "libva-wayland.so"}, symbol: "vaGetDisplayWl", fn: &vaGetDisplayWl}
)

// VA struct mirrors. Field order and sizes match va.h; these must be
// heap-allocated when passed to C so the GC cannot move them mid-call.
type vaImageFormat struct {
	FourCC       uint32
	ByteOrder    uint32
	BitsPerPixel uint32
	Depth        uint32
	RedMask      uint32
	GreenMask    uint32
	BlueMask     uint32
	AlphaMask    uint32
	_            [4]uint32
}

type vaImage struct {
	ImageID           uint32
	Format            vaImageFormat
	Buf               uint32
	Width             uint16
	Height            uint16
	DataSize          uint32
	NumPlanes         uint32
	Pitches           [3]uint32
	Offsets           [3]uint32
	NumPaletteEntries int32
	EntryBytes        int32
	ComponentOrder    [4]int8
	_                 [4]uint32
}

type vaBufferInfo struct {
	Handle  uintptr
	Type    uint32
	MemType uint32
	MemSize uintptr
	_       [4]uint32
}

type vaPRIMEObject struct {
	FD       int32
	Size     uint32
	Modifier uint64
}

type vaPRIMELayer struct {
	DRMFormat   uint32
	NumPlanes   uint32
	ObjectIndex [4]uint32
	Offset      [4]uint32
	Pitch       [4]uint32
}

type vaDRMPRIMESurfaceDescriptor struct {
	FourCC     uint32
	Width      uint32
	Height     uint32
	NumObjects uint32
	Objects    [4]vaPRIMEObject
	NumLayers  uint32
	Layers     [4]vaPRIMELayer
}

// VASurfaceAttrib with an integer VAGenericValue.
type vaSurfaceAttrib struct {
	Type      int32
	Flags     uint32
	ValueType int32
	_         int32
	ValueInt  int32
	_         int32
}

const (
	vaSurfaceAttribPixelFormat = 1
	vaSurfaceAttribSettable    = 0x2
	vaGenericValueTypeInteger  = 1
)

type vaVersion struct {
	Major int32
	Minor int32
}

func loadLibVA() error {
	libvaOnce.Do(func() {
		libvaHandle, libvaInitErr = dlopenFirst(libVAPaths("libva.so.2", "libva.so"))
		if libvaInitErr != nil {
			return
		}
		purego.RegisterLibFunc(&vaInitialize, libvaHandle, "vaInitialize")
		purego.RegisterLibFunc(&vaTerminate, libvaHandle, "vaTerminate")
		purego.RegisterLibFunc(&vaQueryVendorString, libvaHandle, "vaQueryVendorString")
		purego.RegisterLibFunc(&vaErrorStr, libvaHandle, "vaErrorStr")
		purego.RegisterLibFunc(&vaMaxNumImageFormats, libvaHandle, "vaMaxNumImageFormats")
		purego.RegisterLibFunc(&vaQueryImageFormats, libvaHandle, "vaQueryImageFormats")
		purego.RegisterLibFunc(&vaCreateSurfaces, libvaHandle, "vaCreateSurfaces")
		purego.RegisterLibFunc(&vaDestroySurfaces, libvaHandle, "vaDestroySurfaces")
		purego.RegisterLibFunc(&vaSyncSurface, libvaHandle, "vaSyncSurface")
		purego.RegisterLibFunc(&vaDeriveImage, libvaHandle, "vaDeriveImage")
		purego.RegisterLibFunc(&vaDestroyImage, libvaHandle, "vaDestroyImage")
		purego.RegisterLibFunc(&vaAcquireBufferHandle, libvaHandle, "vaAcquireBufferHandle")
		purego.RegisterLibFunc(&vaReleaseBufferHandle, libvaHandle, "vaReleaseBufferHandle")

		if sym, err := purego.Dlsym(libvaHandle, "vaExportSurfaceHandle"); err == nil {
			purego.RegisterFunc(&vaExportSurfaceHandle, sym)
		}
	})
	return libvaInitErr
}

// IsLibVAAvailable reports whether libva could be loaded.
func IsLibVAAvailable() bool {
	return loadLibVA() == nil
}

type vaLib struct {
	once   sync.Once
	names  []string
	symbol string
	fn     any
	err    error
}

func (l *vaLib) load() error {
	l.once.Do(func() {
		if l.err = loadLibVA(); l.err != nil {
			return
		}
		var handle uintptr
		handle, l.err = dlopenFirst(libVAPaths(l.names...))
		if l.err != nil {
			return
		}
		sym, err := purego.Dlsym(handle, l.symbol)
		if err != nil {
			l.err = fmt.Errorf("%s: %w", l.symbol, err)
			return
		}
		purego.RegisterFunc(l.fn, sym)
	})
	return l.err
}

func dlopenFirst(paths []string) (uintptr, error) {
	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return handle, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return 0, fmt.Errorf("%w: %w", ErrLibraryUnavailable, lastErr)
	}
	return 0, ErrLibraryUnavailable
}

func libVAPaths(names ...string) []string {
	var paths []string

	// Environment variable override (highest priority)
	if dir := os.Getenv("VAAPI_LIB_PATH"); dir != "" {
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, name))
		}
	}

	// Bare sonames go through the dynamic loader's search path.
	paths = append(paths, names...)

	// System paths (lowest priority)
	for _, dir := range []string{"/usr/lib/x86_64-linux-gnu", "/usr/lib64", "/usr/lib", "/usr/local/lib"} {
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths
}

// GetDisplayDRM opens a VA display on a DRM render node fd.
func GetDisplayDRM(fd int) Display {
	if libvaDRM.load() != nil {
		return 0
	}
	return Display(vaGetDisplayDRM(int32(fd)))
}

// GetDisplayX11 opens a VA display on an Xlib connection.
func GetDisplayX11(x11 X11Display) Display {
	if libvaX11.load() != nil {
		return 0
	}
	return Display(vaGetDisplayX11(uintptr(x11)))
}

// GetDisplayWayland opens a VA display on a Wayland connection.
func GetDisplayWayland(wl WaylandDisplay) Display {
	if libvaWl.load() != nil {
		return 0
	}
	return Display(vaGetDisplayWl(uintptr(wl)))
}

func statusError(op string, st int32) error {
	if Status(st) == StatusSuccess {
		return nil
	}
	e := &StatusError{Op: op, Status: Status(st)}
	if vaErrorStr != nil {
		e.Detail = vaErrorStr(st)
	}
	return e
}

// LibVA opens devices through the system libva.
type LibVA struct{}

// OpenDevice runs vaInitialize on d. On failure d is terminated.
func (LibVA) OpenDevice(d Display) (HWDevice, error) {
	if err := loadLibVA(); err != nil {
		return nil, err
	}
	ver := new(vaVersion)
	st := vaInitialize(uintptr(d), uintptr(unsafe.Pointer(&ver.Major)), uintptr(unsafe.Pointer(&ver.Minor)))
	runtime.KeepAlive(ver)
	if err := statusError("vaInitialize()", st); err != nil {
		vaTerminate(uintptr(d))
		return nil, err
	}

	dev := &libvaDevice{
		display: d,
		major:   int(ver.Major),
		minor:   int(ver.Minor),
		vendor:  vaQueryVendorString(uintptr(d)),
	}
	formats, err := dev.queryImageFormats()
	if err != nil || len(formats) == 0 {
		// Initialized, but nothing a renderer could consume.
		vaTerminate(uintptr(d))
		return nil, nil
	}
	dev.formats = formats
	return dev, nil
}

type libvaDevice struct {
	display Display
	major   int
	minor   int
	vendor  string
	formats []ImageFormat

	closeOnce sync.Once
	closeErr  error
}

func (d *libvaDevice) dpy() uintptr { return uintptr(d.display) }

func (d *libvaDevice) Display() Display { return d.display }

func (d *libvaDevice) VendorString() string { return d.vendor }

// Version returns the VA-API version reported by vaInitialize.
func (d *libvaDevice) Version() (major, minor int) { return d.major, d.minor }

func (d *libvaDevice) queryImageFormats() ([]ImageFormat, error) {
	n := vaMaxNumImageFormats(d.dpy())
	if n <= 0 {
		return nil, errors.New("driver reports no image formats")
	}
	list := make([]vaImageFormat, n)
	count := new(int32)
	st := vaQueryImageFormats(d.dpy(), uintptr(unsafe.Pointer(&list[0])), uintptr(unsafe.Pointer(count)))
	runtime.KeepAlive(list)
	runtime.KeepAlive(count)
	if err := statusError("vaQueryImageFormats()", st); err != nil {
		return nil, err
	}

	var out []ImageFormat
	seen := make(map[ImageFormat]bool)
	for i := 0; i < int(*count) && i < len(list); i++ {
		f := FormatFromFourCC(FourCC(list[i].FourCC))
		if f == FormatNone || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

func (d *libvaDevice) ValidFormats() ([]ImageFormat, error) {
	out := make([]ImageFormat, len(d.formats))
	copy(out, d.formats)
	return out, nil
}

func (d *libvaDevice) AllocFrame(format ImageFormat, width, height int) (*Surface, error) {
	rt := format.RTFormat()
	if rt == 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("cannot allocate %s surface of %dx%d", format, width, height)
	}
	attr := &vaSurfaceAttrib{
		Type:      vaSurfaceAttribPixelFormat,
		Flags:     vaSurfaceAttribSettable,
		ValueType: vaGenericValueTypeInteger,
		ValueInt:  int32(format.FourCC()),
	}
	id := new(uint32)
	st := vaCreateSurfaces(d.dpy(), rt, uint32(width), uint32(height), uintptr(unsafe.Pointer(id)), 1, uintptr(unsafe.Pointer(attr)), 1)
	runtime.KeepAlive(attr)
	runtime.KeepAlive(id)
	if err := statusError("vaCreateSurfaces()", st); err != nil {
		return nil, err
	}

	sid := *id
	params := ImageParams{HWSubformat: format, Width: width, Height: height}
	return NewSurface(SurfaceID(sid), params, func() {
		ids := []uint32{sid}
		vaDestroySurfaces(d.dpy(), uintptr(unsafe.Pointer(&ids[0])), 1)
		runtime.KeepAlive(ids)
	}), nil
}

func (d *libvaDevice) ExportSurfaceHandle(id SurfaceID, memType MemoryType, flags ExportFlags) (*PRIMEDescriptor, error) {
	if vaExportSurfaceHandle == nil {
		return nil, &StatusError{Op: "vaExportSurfaceHandle()", Status: StatusUnimplemented}
	}
	raw := new(vaDRMPRIMESurfaceDescriptor)
	st := vaExportSurfaceHandle(d.dpy(), uint32(id), uint32(memType), uint32(flags), uintptr(unsafe.Pointer(raw)))
	runtime.KeepAlive(raw)
	if err := statusError("vaExportSurfaceHandle()", st); err != nil {
		return nil, err
	}

	desc := &PRIMEDescriptor{
		FourCC: FourCC(raw.FourCC),
		Width:  raw.Width,
		Height: raw.Height,
	}
	for i := 0; i < int(raw.NumObjects) && i < len(raw.Objects); i++ {
		o := raw.Objects[i]
		desc.Objects = append(desc.Objects, PRIMEObject{
			FD:       NewOwnedFD(int(o.FD)),
			Size:     o.Size,
			Modifier: o.Modifier,
		})
	}
	for i := 0; i < int(raw.NumLayers) && i < len(raw.Layers); i++ {
		l := raw.Layers[i]
		desc.Layers = append(desc.Layers, PRIMELayer{
			DRMFormat:   FourCC(l.DRMFormat),
			NumPlanes:   int(l.NumPlanes),
			ObjectIndex: l.ObjectIndex,
			Offset:      l.Offset,
			Pitch:       l.Pitch,
		})
	}
	return desc, nil
}

func (d *libvaDevice) SyncSurface(id SurfaceID) error {
	return statusError("vaSyncSurface()", vaSyncSurface(d.dpy(), uint32(id)))
}

func (d *libvaDevice) DeriveImage(id SurfaceID) (Image, error) {
	raw := new(vaImage)
	st := vaDeriveImage(d.dpy(), uint32(id), uintptr(unsafe.Pointer(raw)))
	runtime.KeepAlive(raw)
	if err := statusError("vaDeriveImage()", st); err != nil {
		return Image{ID: InvalidImageID, Buf: InvalidBufferID}, err
	}
	return Image{
		ID:        ImageID(raw.ImageID),
		FourCC:    FourCC(raw.Format.FourCC),
		Buf:       BufferID(raw.Buf),
		Width:     int(raw.Width),
		Height:    int(raw.Height),
		NumPlanes: int(raw.NumPlanes),
		Pitches:   raw.Pitches,
		Offsets:   raw.Offsets,
	}, nil
}

func (d *libvaDevice) AcquireBufferHandle(buf BufferID, memType MemoryType) (BufferInfo, error) {
	info := &vaBufferInfo{MemType: uint32(memType)}
	st := vaAcquireBufferHandle(d.dpy(), uint32(buf), uintptr(unsafe.Pointer(info)))
	runtime.KeepAlive(info)
	if err := statusError("vaAcquireBufferHandle()", st); err != nil {
		return BufferInfo{}, err
	}
	return BufferInfo{
		Handle:  info.Handle,
		Type:    info.Type,
		MemType: MemoryType(info.MemType),
		MemSize: info.MemSize,
	}, nil
}

func (d *libvaDevice) ReleaseBufferHandle(buf BufferID) error {
	return statusError("vaReleaseBufferHandle()", vaReleaseBufferHandle(d.dpy(), uint32(buf)))
}

func (d *libvaDevice) DestroyImage(id ImageID) error {
	return statusError("vaDestroyImage()", vaDestroyImage(d.dpy(), uint32(id)))
}

func (d *libvaDevice) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = statusError("vaTerminate()", vaTerminate(d.dpy()))
	})
	return d.closeErr
}
