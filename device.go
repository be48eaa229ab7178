package vaapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/thesyncim/vaapi/internal/logger"
)

// DriverName is the name devices register under.
const DriverName = "vaapi"

// Options configures Open.
type Options struct {
	// Resources supplies native windowing resources. Required.
	Resources ResourceProvider
	// DisplayBackends are tried in order. Defaults to X11, Wayland, DRM.
	DisplayBackends []DisplayBackend
	// Interops are tried in order; the first ready one is used. Required.
	Interops []InteropProvider
	// Opener initializes the driver. Defaults to libva.
	Opener HWDeviceOpener
	// Formats describes plane layouts. Defaults to DefaultFormats.
	Formats FormatDescriber
	// Registry receives the device once initialized. Optional.
	Registry DeviceRegistry
	// Probing marks an automatic, optional initialization. Emulated drivers
	// are rejected in this mode.
	Probing bool
	// EmulationDetector defaults to VendorEmulated.
	EmulationDetector EmulationDetector
	// Logger defaults to the "vaapi" component logger.
	Logger *zerolog.Logger
}

// Device is an initialized VA-API interop device, one per playback session.
// After Open returns it is read-only until Close.
type Device struct {
	log zerolog.Logger

	display     Display
	displayName string
	hw          HWDevice
	interop     Interop
	describer   FormatDescriber
	supported   FormatList
	registry    DeviceRegistry

	probing bool
	closed  bool
}

// VendorEmulated recognizes the VDPAU-backed VA-API shim by its vendor string.
func VendorEmulated(dev HWDevice) bool {
	return strings.Contains(dev.VendorString(), "VDPAU backend")
}

// Open acquires a display, initializes the driver, selects a renderer
// interop and probes which formats actually map. The device is added to
// opts.Registry only when all of that succeeded.
func Open(ctx context.Context, opts Options) (*Device, error) {
	log := opts.Logger
	if log == nil {
		log = logger.WithComponent("vaapi")
	}
	d := &Device{
		log:       *log,
		describer: opts.Formats,
		registry:  opts.Registry,
	}
	if d.describer == nil {
		d.describer = DefaultFormats
	}

	// A display from vaGet*Display must be terminated, so bail out before
	// creating one.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	backends := opts.DisplayBackends
	if backends == nil {
		backends = DefaultDisplayBackends()
	}
	d.display, d.displayName = AcquireDisplay(opts.Resources, backends, d.log)
	if d.display == 0 {
		d.log.Debug().Msg("Could not create a VA display")
		return nil, ErrNoDisplay
	}
	d.log = d.log.With().Str("display", d.displayName).Logger()

	opener := opts.Opener
	if opener == nil {
		opener = LibVA{}
	}
	detect := opts.EmulationDetector
	if detect == nil {
		detect = VendorEmulated
	}
	hw, err := openHWDevice(opener, d.display, opts.Probing, detect, d.log)
	if err != nil {
		return nil, err
	}
	d.hw = hw

	if err := d.init(ctx, opts.Interops); err != nil {
		if cerr := hw.Close(); cerr != nil {
			d.log.Warn().Err(cerr).Msg("vaTerminate() failed")
		}
		return nil, err
	}

	if d.registry != nil {
		d.registry.Add(d)
	}
	d.log.Info().
		Str("vendor", hw.VendorString()).
		Str("interop", d.interop.Name()).
		Str("formats", d.supported.String()).
		Msg("VA-API interop device ready")
	return d, nil
}

func (d *Device) init(ctx context.Context, interops []InteropProvider) error {
	d.interop = selectInterop(interops, d, d.log)
	if d.interop == nil {
		d.log.Debug().Msg("VA-API hwdec only works with OpenGL or GPU backends")
		return ErrNoInterop
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	formats, err := d.probeFormats()
	if err != nil {
		return err
	}
	d.supported = formats
	return nil
}

// openHWDevice wraps a display into a driver instance.
func openHWDevice(opener HWDeviceOpener, display Display, probing bool, detect EmulationDetector, log zerolog.Logger) (HWDevice, error) {
	if display == 0 {
		return nil, ErrNoDisplay
	}
	hw, err := opener.OpenDevice(display)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize VA driver: %w", err)
	}
	if hw == nil {
		log.Debug().Msg("VA driver rejected the display")
		return nil, ErrDriverRejected
	}
	if probing && detect != nil && detect(hw) {
		log.Debug().Str("vendor", hw.VendorString()).Msg("Not using emulated VA-API driver")
		if err := hw.Close(); err != nil {
			log.Warn().Err(err).Msg("vaTerminate() failed")
		}
		return nil, ErrEmulated
	}
	return hw, nil
}

// Name returns the driver name.
func (d *Device) Name() string { return DriverName }

// DisplayBackend returns the name of the backend the display came from.
func (d *Device) DisplayBackend() string { return d.displayName }

// Display returns the VA display.
func (d *Device) Display() Display { return d.display }

// HW returns the driver instance.
func (d *Device) HW() HWDevice { return d.hw }

// Interop returns the selected renderer interop.
func (d *Device) Interop() Interop { return d.interop }

// SupportedFormats returns the formats that survived probing.
func (d *Device) SupportedFormats() FormatList { return d.supported }

// Supports reports whether f is a supported subformat.
func (d *Device) Supports(f ImageFormat) bool { return d.supported.Contains(f) }

// Logger returns the device logger, for interops.
func (d *Device) Logger() *zerolog.Logger { return &d.log }

// Close removes the device from its registry and terminates the driver.
// Later calls are no-ops.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.registry != nil {
		d.registry.Remove(d)
	}
	if err := d.hw.Close(); err != nil {
		return fmt.Errorf("failed to terminate VA display: %w", err)
	}
	return nil
}
