package cli

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/binderveil/binderveil/internal/config"
)

func NewRoot(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "binderveil",
		Short:         "binderveil: hide installed packages from the app store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("binderveil {{.Version}}\n")

	cmd.PersistentFlags().String("config", getenvDefault("BINDERVEIL_CONFIG", config.DefaultPath), "Path to config YAML (defaults apply when the default file is missing)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadConfig reads the --config file. A missing file at the default
// location falls back to built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		if !cmd.Root().PersistentFlags().Changed("config") && os.Getenv("BINDERVEIL_CONFIG") == "" {
			if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
				return config.Default(), nil
			}
		}
		return nil, err
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
