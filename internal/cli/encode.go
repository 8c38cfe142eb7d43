package cli

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/binderveil/binderveil/internal/blocklist"
)

func newEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode <package>",
		Short: "Print the stored encoding of a package name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			varName, _ := cmd.Flags().GetString("var")
			convName, _ := cmd.Flags().GetString("convention")
			conv, err := blocklist.ParseConvention(convName)
			if err != nil {
				return err
			}

			stored, err := blocklist.EncodeName(args[0], conv)
			if err != nil {
				return err
			}
			switch format {
			case "hex":
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(stored))
			case "c":
				fmt.Fprint(cmd.OutOrStdout(), formatCArray(varName, stored))
			case "entry":
				entry, err := blocklist.AppendEntry(nil, args[0], blocklist.Options{Convention: conv})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(entry))
			default:
				return fmt.Errorf("invalid --format %q (hex|c|entry)", format)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "hex", "output format: hex|c|entry")
	cmd.Flags().String("var", "tmp", "variable name for --format c")
	cmd.Flags().String("convention", "odd-byte", "entry convention: odd-byte|char-count")
	return cmd
}

// formatCArray renders b as a C char array, printable bytes as character
// literals, fifteen per line.
func formatCArray(name string, b []byte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "char %s[] = {", name)
	for i, c := range b {
		if i%15 == 0 {
			sb.WriteString("\n    ")
		}
		if c >= 0x20 && c < 0x7f && c != '\'' && c != '\\' {
			fmt.Fprintf(&sb, "'%c'", c)
		} else {
			fmt.Fprintf(&sb, "0x%x", c)
		}
		if i < len(b)-1 {
			sb.WriteString(", ")
		}
	}
	fmt.Fprintf(&sb, "};\nsize_t %s_len = %d;\n", name, len(b))
	return sb.String()
}
