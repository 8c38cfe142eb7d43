package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/binderveil/binderveil/internal/config"
	"github.com/binderveil/binderveil/internal/listfile"
)

// Overridden in tests.
var (
	installedPackages = listfile.InstalledPackages
	restartStore      = func() ([]int, error) {
		return listfile.Killer{}.Kill(listfile.StorePackage)
	}
)

func openStore(cfg *config.Config) (*listfile.Store, error) {
	opts, err := cfg.BlocklistOptions()
	if err != nil {
		return nil, err
	}
	return listfile.New(cfg.Blocklist.Path, cfg.Blocklist.MirrorPath, opts), nil
}

func addNoRestartFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-restart", false, "do not kill the store process after the change")
}

// afterChange restarts the store so it reconnects with the new list.
func afterChange(cmd *cobra.Command) {
	if noRestart, _ := cmd.Flags().GetBool("no-restart"); noRestart {
		return
	}
	pids, err := restartStore()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not restart store: %v\n", err)
		return
	}
	if len(pids) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "restarted store (%d processes)\n", len(pids))
	}
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List hidden packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			names, err := store.List()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "blocklist empty")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	return cmd
}

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <package>",
		Short: "Hide a package from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}

			if force, _ := cmd.Flags().GetBool("force"); !force {
				ctx, cancel := context.WithTimeout(cmdContext(cmd), 10*time.Second)
				installed, err := installedPackages(ctx)
				cancel()
				switch {
				case err != nil:
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not list installed packages: %v\n", err)
				case !slices.Contains(installed, name):
					msg := fmt.Sprintf("%s is not installed", name)
					if best, _ := listfile.Closest(name, installed); best != "" {
						msg += fmt.Sprintf("; did you mean %s?", best)
					}
					return exitf(exitNotInstalled, "%s (use --force to add anyway)", msg)
				}
			}

			if err := store.Add(name); err != nil {
				if errors.Is(err, listfile.ErrExists) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is already hidden\n", name)
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hidden: %s\n", name)
			afterChange(cmd)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "add even if the package is not installed")
	addNoRestartFlag(cmd)
	return cmd
}

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <package>",
		Short: "Stop hiding a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			if err := store.Remove(args[0]); err != nil {
				if errors.Is(err, listfile.ErrNotFound) {
					return exitf(exitNotListed, "%s is not hidden", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "re-attached: %s\n", args[0])
			afterChange(cmd)
			return nil
		},
	}
	addNoRestartFlag(cmd)
	return cmd
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove the blocklist files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			removed, err := store.Reset()
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "already empty")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reset")
			afterChange(cmd)
			return nil
		},
	}
	addNoRestartFlag(cmd)
	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
