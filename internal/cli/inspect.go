package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/binderveil/binderveil/internal/blocklist"
	"github.com/binderveil/binderveil/internal/intercept"
	"github.com/binderveil/binderveil/internal/loader"
	"github.com/binderveil/binderveil/internal/parcel"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [hex]",
		Short: "Decode a transaction dump and report what the interceptor would do",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			file, _ := cmd.Flags().GetString("file")
			data, err := readDump(cmd, args, file)
			if err != nil {
				return err
			}

			v, err := cfg.Validator()
			if err != nil {
				return err
			}
			if shape, _ := cmd.Flags().GetString("shape"); shape != "" {
				if v.Shape, err = parcel.ParseShape(shape); err != nil {
					return err
				}
			}
			if v.Shape == 0 {
				if v.Shape, err = loader.DetectShape(loader.Getprop{}); err != nil {
					return fmt.Errorf("detect envelope shape (pass --shape): %w", err)
				}
			}
			strategy, err := intercept.ParseMatchStrategy(cfg.Intercept.Strategy)
			if err != nil {
				return err
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			raw, err := store.Read()
			if err != nil {
				return err
			}
			bl, err := blocklist.Parse(raw, store.Options)
			if err != nil {
				return fmt.Errorf("load blocklist: %w", err)
			}
			ictx, err := intercept.NewContext(bl, v, strategy)
			if err != nil {
				return err
			}

			code, _ := cmd.Flags().GetUint32("code")
			dec := ictx.Inspect(code, data)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "shape:    %s\n", v.Shape)
			fmt.Fprintf(out, "code:     %d\n", code)
			fmt.Fprintf(out, "envelope: %s\n", envelopeState(v, code, data))
			fmt.Fprintf(out, "outcome:  %s\n", dec.Outcome)
			if id, ok := identifierOf(v, data); ok {
				fmt.Fprintf(out, "argument: %q at offset %d\n", id.String(), id.Off)
			}
			if dec.Outcome == intercept.OutcomeRedacted {
				fmt.Fprintf(out, "entry:    %d (%s)\n", dec.Match.Entry, dec.Name)
				if exit, _ := cmd.Flags().GetBool("exit-status"); exit {
					return &ExitError{code: exitRedacted}
				}
			}
			return nil
		},
	}
	cmd.Flags().String("file", "", "read the hex dump from a file (- for stdin)")
	cmd.Flags().String("shape", "", "envelope shape 1|2|3 (default from config or device)")
	cmd.Flags().Uint32("code", 0, "transaction code")
	cmd.Flags().Bool("exit-status", false, "exit with status 3 when the call would be redacted")
	return cmd
}

func envelopeState(v parcel.Validator, code uint32, data []byte) string {
	switch {
	case v.ValidateCode(code, data):
		return "valid"
	case v.Validate(data):
		return "valid (code not watched)"
	default:
		return "invalid"
	}
}

func identifierOf(v parcel.Validator, data []byte) (parcel.Identifier, bool) {
	cur, ok := v.Open(data)
	if !ok {
		return parcel.Identifier{}, false
	}
	id, err := parcel.Extract(cur)
	if err != nil {
		return parcel.Identifier{}, false
	}
	return id, true
}

func readDump(cmd *cobra.Command, args []string, file string) ([]byte, error) {
	var text string
	switch {
	case len(args) == 1:
		text = args[0]
	case file == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		text = string(b)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read dump: %w", err)
		}
		text = string(b)
	default:
		return nil, fmt.Errorf("a hex dump argument or --file is required")
	}
	return decodeHexDump(text)
}

// decodeHexDump accepts hex with arbitrary whitespace and optional 0x
// prefixes.
func decodeHexDump(text string) ([]byte, error) {
	var sb strings.Builder
	for _, f := range strings.Fields(text) {
		sb.WriteString(strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X"))
	}
	b, err := hex.DecodeString(sb.String())
	if err != nil {
		return nil, fmt.Errorf("decode hex dump: %w", err)
	}
	return b, nil
}
