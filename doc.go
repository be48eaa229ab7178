// Package vaapi maps VA-API decoded surfaces into GPU renderer textures
// without a CPU copy.
//
// Key pieces include:
//   - Display acquisition over X11, Wayland or a DRM render node
//   - Driver initialization with optional rejection of emulated drivers
//   - Renderer interop selection (EGL/GL, GPU-API)
//   - Empirical format probing: every format the driver claims is mapped once
//   - A per-frame Mapper with DRM PRIME export and legacy derive-image fallback
//
// # Architecture
//
//	Open: ResourceProvider -> DisplayBackend -> HWDeviceOpener -> InteropProvider -> probe -> DeviceRegistry
//	Frame: Surface -> Mapper.Map -> Mapper.Tex (one texture per plane) -> Mapper.Unmap
//
// # Native Libraries
//
// The driver binding loads libva.so.2 and the window-system companions
// (libva-drm, libva-x11, libva-wayland) at runtime via purego, so no cgo
// toolchain is needed. Set VAAPI_LIB_PATH to a directory to override the
// loader search path.
//
// # File Descriptors
//
// Exported DMA-BUF descriptors are owned by the Mapper from export until
// Unmap, and are closed exactly once. Interops and importers must not close
// or keep them.
package vaapi
