package vaapi

import (
	"errors"
	"fmt"
)

// Display is an opaque VADisplay handle. Zero means no display.
type Display uintptr

// Status is a VAStatus code returned by libva.
type Status int32

const (
	StatusSuccess                Status = 0x00
	StatusOperationFailed        Status = 0x01
	StatusAllocationFailed       Status = 0x02
	StatusInvalidDisplay         Status = 0x03
	StatusInvalidConfig          Status = 0x04
	StatusInvalidContext         Status = 0x05
	StatusInvalidSurface         Status = 0x06
	StatusInvalidBuffer          Status = 0x07
	StatusInvalidImage           Status = 0x08
	StatusInvalidSubpicture      Status = 0x09
	StatusAttrNotSupported       Status = 0x0a
	StatusMaxNumExceeded         Status = 0x0b
	StatusUnsupportedProfile     Status = 0x0c
	StatusUnsupportedEntrypoint  Status = 0x0d
	StatusUnsupportedRTFormat    Status = 0x0e
	StatusUnsupportedBufferType  Status = 0x0f
	StatusSurfaceBusy            Status = 0x10
	StatusFlagNotSupported       Status = 0x11
	StatusInvalidParameter       Status = 0x12
	StatusResolutionNotSupported Status = 0x13
	StatusUnimplemented          Status = 0x14
)

var statusNames = map[Status]string{
	StatusSuccess:                "success",
	StatusOperationFailed:        "operation failed",
	StatusAllocationFailed:       "resource allocation failed",
	StatusInvalidDisplay:         "invalid VADisplay",
	StatusInvalidConfig:          "invalid VAConfigID",
	StatusInvalidContext:         "invalid VAContextID",
	StatusInvalidSurface:         "invalid VASurfaceID",
	StatusInvalidBuffer:          "invalid VABufferID",
	StatusInvalidImage:           "invalid VAImageID",
	StatusInvalidSubpicture:      "invalid VASubpictureID",
	StatusAttrNotSupported:       "attribute not supported",
	StatusMaxNumExceeded:         "list argument exceeds maximum number",
	StatusUnsupportedProfile:     "the requested VAProfile is not supported",
	StatusUnsupportedEntrypoint:  "the requested VAEntryPoint is not supported",
	StatusUnsupportedRTFormat:    "the requested RT Format is not supported",
	StatusUnsupportedBufferType:  "the requested VABufferType is not supported",
	StatusSurfaceBusy:            "surface is in use",
	StatusFlagNotSupported:       "flag not supported",
	StatusInvalidParameter:       "invalid parameter",
	StatusResolutionNotSupported: "resolution not supported",
	StatusUnimplemented:          "the requested function is not implemented",
}

// Error implements error so statuses can be used as errors.Is targets.
func (s Status) Error() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown VA status 0x%x", int32(s))
}

// StatusError is a failed libva call.
type StatusError struct {
	Op     string // e.g. "vaExportSurfaceHandle()"
	Status Status
	Detail string // vaErrorStr text, when available
}

func (e *StatusError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Status.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s (0x%x)", msg, int32(e.Status))
	}
	return fmt.Sprintf("%s: %s (0x%x)", e.Op, msg, int32(e.Status))
}

// Is matches a bare Status target.
func (e *StatusError) Is(target error) bool {
	s, ok := target.(Status)
	return ok && s == e.Status
}

// StatusOf extracts the VA status from err, or StatusOperationFailed when err
// did not originate from libva.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return StatusOperationFailed
}

// MemoryType is a VA_SURFACE_ATTRIB_MEM_TYPE_* value.
type MemoryType uint32

const (
	MemTypeVA        MemoryType = 0x00000001
	MemTypeDRMPrime  MemoryType = 0x20000000
	MemTypeDRMPrime2 MemoryType = 0x40000000
)

// ExportFlags are VA_EXPORT_SURFACE_* flags.
type ExportFlags uint32

const (
	ExportReadOnly       ExportFlags = 0x0001
	ExportWriteOnly      ExportFlags = 0x0002
	ExportReadWrite      ExportFlags = 0x0003
	ExportSeparateLayers ExportFlags = 0x0004
	ExportComposedLayers ExportFlags = 0x0008
)

// PRIMEObject is one exported DMA-BUF. FD is owned by whoever holds the
// descriptor and must be closed exactly once.
type PRIMEObject struct {
	FD       OwnedFD
	Size     uint32
	Modifier uint64
}

// PRIMELayer describes one layer of an exported surface.
type PRIMELayer struct {
	DRMFormat   FourCC
	NumPlanes   int
	ObjectIndex [4]uint32
	Offset      [4]uint32
	Pitch       [4]uint32
}

// PRIMEDescriptor is the result of exporting a surface as DRM PRIME 2.
type PRIMEDescriptor struct {
	FourCC  FourCC
	Width   uint32
	Height  uint32
	Objects []PRIMEObject
	Layers  []PRIMELayer
}

// ObjectFD returns the file descriptor backing plane 0 of layer n, or -1.
func (d *PRIMEDescriptor) ObjectFD(layer int) int {
	if d == nil || layer < 0 || layer >= len(d.Layers) {
		return -1
	}
	idx := int(d.Layers[layer].ObjectIndex[0])
	if idx >= len(d.Objects) {
		return -1
	}
	return d.Objects[idx].FD.Fd()
}

// Modifier returns the DRM format modifier of the object backing layer n.
func (d *PRIMEDescriptor) Modifier(layer int) uint64 {
	if d == nil || layer < 0 || layer >= len(d.Layers) {
		return 0
	}
	idx := int(d.Layers[layer].ObjectIndex[0])
	if idx >= len(d.Objects) {
		return 0
	}
	return d.Objects[idx].Modifier
}

// closeObjects closes every owned object fd and returns the first error.
func (d *PRIMEDescriptor) closeObjects() error {
	var first error
	for i := range d.Objects {
		if err := d.Objects[i].FD.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Driver is the subset of libva used per frame.
type Driver interface {
	// ExportSurfaceHandle exports id; ownership of the returned fds passes to the caller.
	ExportSurfaceHandle(id SurfaceID, memType MemoryType, flags ExportFlags) (*PRIMEDescriptor, error)
	SyncSurface(id SurfaceID) error
	DeriveImage(id SurfaceID) (Image, error)
	AcquireBufferHandle(buf BufferID, memType MemoryType) (BufferInfo, error)
	ReleaseBufferHandle(buf BufferID) error
	DestroyImage(id ImageID) error
}

// HWDevice is an initialized VA driver instance bound to one display.
type HWDevice interface {
	Driver

	Display() Display
	VendorString() string
	// ValidFormats returns the software formats the driver claims to support, in driver order.
	ValidFormats() ([]ImageFormat, error)
	// AllocFrame allocates a surface for probing. The caller releases it.
	AllocFrame(format ImageFormat, width, height int) (*Surface, error)
	// Close terminates the display.
	Close() error
}

// HWDeviceOpener initializes a driver on a native display.
//
// OpenDevice returns (nil, nil) when the driver accepted the display but
// produced nothing usable. On error the opener has already released the display.
type HWDeviceOpener interface {
	OpenDevice(d Display) (HWDevice, error)
}

// EmulationDetector reports whether dev is a software emulation layer
// rather than real decode hardware.
type EmulationDetector func(dev HWDevice) bool
