package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/thesyncim/vaapi"
	"github.com/thesyncim/vaapi/internal/logger"
	"github.com/thesyncim/vaapi/internal/native"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Probe the VA-API driver and list mappable formats",
	Long: `Open a VA display, initialize the driver and map one small surface of
every format the driver reports. Formats that survive a full map/unmap
cycle are listed as supported.`,
	Example: `  # Probe using the configured display backends
  vaprobe info

  # Probe a specific render node only
  vaprobe info --display drm --render-node /dev/dri/renderD129`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func interopProviders(names []string) []vaapi.InteropProvider {
	log := logger.WithComponent("vaprobe")
	var out []vaapi.InteropProvider
	for _, name := range names {
		switch name {
		case "gl":
			// An EGL importer needs a current GL context, which a CLI does not have.
			log.Debug().Msg("Skipping gl interop: no GL context")
		case "gpu":
			out = append(out, vaapi.GPUProvider{Importer: dmabufImporter{}})
		}
	}
	return out
}

func runInfo(cmd *cobra.Command, args []string) error {
	if !vaapi.IsLibVAAvailable() {
		return fmt.Errorf("%w (set VAAPI_LIB_PATH to its directory)", vaapi.ErrLibraryUnavailable)
	}
	backends, err := vaapi.DisplayBackendsByName(cfg.DisplayBackends)
	if err != nil {
		return err
	}

	res := native.NewProvider(cfg.RenderNode)
	defer res.Close()

	registry := vaapi.NewDevices()
	dev, err := vaapi.Open(cmd.Context(), vaapi.Options{
		Resources:       res,
		DisplayBackends: backends,
		Interops:        interopProviders(cfg.InteropBackends),
		Registry:        registry,
		Probing:         cfg.Probing,
	})
	if err != nil {
		return fmt.Errorf("failed to open VA-API device: %w", err)
	}
	defer dev.Close()

	valid, err := dev.HW().ValidFormats()
	if err != nil {
		logger.WithComponent("vaprobe").Warn().Err(err).Msg("Failed to query driver formats")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Driver:\t%s\n", dev.Name())
	fmt.Fprintf(w, "Display:\t%s\n", dev.DisplayBackend())
	fmt.Fprintf(w, "Vendor:\t%s\n", dev.HW().VendorString())
	if v, ok := dev.HW().(interface{ Version() (int, int) }); ok {
		major, minor := v.Version()
		fmt.Fprintf(w, "VA-API version:\t%d.%d\n", major, minor)
	}
	fmt.Fprintf(w, "Interop:\t%s\n", dev.Interop().Name())
	fmt.Fprintf(w, "Driver formats:\t%s\n", joinFormats(valid))
	fmt.Fprintf(w, "Supported formats:\t%s\n", dev.SupportedFormats())
	fmt.Fprintf(w, "Registered devices:\t%d\n", registry.Len())
	return w.Flush()
}

func joinFormats(fs []vaapi.ImageFormat) string {
	if len(fs) == 0 {
		return "(none)"
	}
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.String()
	}
	return strings.Join(names, ",")
}
