package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thesyncim/vaapi/internal/config"
	"github.com/thesyncim/vaapi/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	rootCmd = &cobra.Command{
		Use:   "vaprobe",
		Short: "vaprobe - Inspect VA-API hardware surface interop",
		Long: `vaprobe opens a VA-API display the way a video player would, initializes
the driver and reports which decoded surface formats can be mapped into
renderer textures without a CPU copy.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringSlice("display", nil, "display backends to try, in order (x11, wayland, drm)")
	rootCmd.PersistentFlags().String("render-node", "", "DRM render node for the drm backend")
	rootCmd.PersistentFlags().Bool("probing", false, "reject emulated drivers, as automatic hwdec selection does")
}

var flagKeys = map[string]string{
	"log-level":   "log_level",
	"display":     "display_backends",
	"render-node": "render_node",
	"probing":     "probing",
}

func loadConfig(cmd *cobra.Command, args []string) error {
	v, err := config.New(cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd); err != nil {
		return err
	}
	cfg, err = config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	return nil
}

// bindFlags lets explicitly set flags override file and environment values.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
