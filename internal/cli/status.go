package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/binderveil/binderveil/internal/blocklist"
	"github.com/binderveil/binderveil/internal/companion"
	"github.com/binderveil/binderveil/internal/loader"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report blocklist, companion and device readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			names, err := store.List()
			if err != nil {
				fmt.Fprintf(out, "blocklist:  error: %v\n", err)
			} else {
				fmt.Fprintf(out, "blocklist:  %s (%d entries)\n", cfg.Blocklist.Path, len(names))
			}

			opts, err := cfg.BlocklistOptions()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmdContext(cmd), 3*time.Second)
			defer cancel()
			fmt.Fprintf(out, "companion:  %s\n", companionStatus(ctx, cfg.Companion.SocketPath, opts))

			if shape, err := loader.DetectShape(loader.Getprop{}); err != nil {
				fmt.Fprintf(out, "envelope:   unknown: %v\n", err)
			} else {
				fmt.Fprintf(out, "envelope:   %s\n", shape)
			}
			if id, err := loader.LookupLibrary(cfg.Intercept.Library); err != nil {
				fmt.Fprintf(out, "library:    %v\n", err)
			} else {
				fmt.Fprintf(out, "library:    %s dev=%d inode=%d\n", cfg.Intercept.Library, id.Dev, id.Inode)
			}

			if process, _ := cmd.Flags().GetString("process"); process != "" {
				lcfg, err := loader.FromConfig(cfg)
				if err != nil {
					return err
				}
				mod, err := loader.New(lcfg, nil, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "target:     %s hooked=%t\n", process, mod.IsTarget(process))
			}
			return nil
		},
	}
	cmd.Flags().String("process", "", "check whether a process name is targeted")
	return cmd
}

// companionStatus fetches the served list with the configured size cap and
// describes it.
func companionStatus(ctx context.Context, socket string, opts blocklist.Options) string {
	limit := opts.MaxSize
	if limit <= 0 {
		limit = blocklist.MaxSize
	}
	data, err := companion.Fetch(ctx, socket, limit)
	if err != nil {
		return fmt.Sprintf("%s unavailable: %v", socket, err)
	}
	bl, err := blocklist.Parse(data, opts)
	if err != nil {
		return fmt.Sprintf("serving %d bytes, rejected: %v", len(data), err)
	}
	return fmt.Sprintf("serving %d entries", bl.Len())
}
