package vaapi

import "errors"

var (
	// ErrNoDisplay means no display backend produced a VA display.
	ErrNoDisplay = errors.New("vaapi: could not create a VA display")
	// ErrNoInterop means no renderer interop backend is usable.
	ErrNoInterop = errors.New("vaapi: no usable renderer interop (needs OpenGL or GPU backend)")
	// ErrDriverRejected means the driver accepted the display but produced no usable device.
	ErrDriverRejected = errors.New("vaapi: driver rejected the display")
	// ErrEmulated means the driver looks like a software emulation layer.
	ErrEmulated = errors.New("vaapi: driver is an emulation layer")
	// ErrNoFormats means no subformat survived probing.
	ErrNoFormats = errors.New("vaapi: no working image formats")
	// ErrUnsupportedFormat means the format is not in the supported list.
	ErrUnsupportedFormat = errors.New("vaapi: unsupported VA image format")
	// ErrMapFailed wraps any per-frame mapping failure.
	ErrMapFailed = errors.New("vaapi: mapping VA surface failed")
	// ErrLegacyUnavailable means the interop has no legacy mapper.
	ErrLegacyUnavailable = errors.New("vaapi: legacy derive-image path unavailable")
	// ErrAlreadyMapped means Map was called twice without Unmap.
	ErrAlreadyMapped = errors.New("vaapi: mapper already mapped")
	// ErrClosed means the device or mapper was already closed.
	ErrClosed = errors.New("vaapi: closed")
	// ErrLibraryUnavailable means libva could not be loaded.
	ErrLibraryUnavailable = errors.New("vaapi: libva not available")
)
