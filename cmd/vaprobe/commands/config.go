package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  `Display the configuration after merging defaults, the config file, VAAPI_* environment variables and flags.`,
	Example: `  # Show configuration as YAML (default)
  vaprobe config

  # Show configuration as JSON
  vaprobe config --format json`,
	RunE: runConfig,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func runConfig(cmd *cobra.Command, args []string) error {
	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}
