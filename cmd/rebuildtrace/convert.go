package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"rebuildtrace/internal/scenario"
)

var convertCmd = &cobra.Command{
	Use:   "convert <scenario.toml> [out.msgpack]",
	Short: "Write a binary msgpack capture of a scenario",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := args[0]
		out := capturePath(in)
		if len(args) == 2 {
			out = args[1]
		}
		if err := convertScenario(in, out); err != nil {
			return err
		}
		quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
		if err != nil {
			return fmt.Errorf("failed to get quiet flag: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
		}
		return nil
	},
}

// capturePath derives the default output path: the input with its
// extension replaced by .msgpack.
func capturePath(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".msgpack"
}

func convertScenario(in, out string) (err error) {
	if filepath.Clean(in) == filepath.Clean(out) {
		return fmt.Errorf("convert: input and output are the same file %s", in)
	}
	scn, err := scenario.Load(in)
	if err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("convert: %w", cerr)
		}
	}()
	if err := scenario.EncodeMsgpack(f, scn); err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	return nil
}
