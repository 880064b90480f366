// Command ycli operates on encoded updates sitting on disk: merging,
// diffing against a state vector, and printing a state vector, without
// ever materializing a Document (spec.md §4.5's module-level byte
// operations, exposed as a CLI).
package main

import (
	"encoding/base64"
	"fmt"
	"os"

	crdt "github.com/cshekharsharma/go-yata"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ycli",
		Short: "inspect and combine YATA update files",
	}
	root.AddCommand(newMergeCmd(), newDiffCmd(), newSVCmd())
	return root
}

func newMergeCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "merge [update-files...]",
		Short: "merge one or more update files into one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var updates [][]byte
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				updates = append(updates, data)
			}
			merged, err := crdt.MergeUpdates(updates)
			if err != nil {
				return err
			}
			return writeOutput(outPath, merged)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default: stdout, base64)")
	return cmd
}

func newDiffCmd() *cobra.Command {
	var svPath, outPath string
	cmd := &cobra.Command{
		Use:   "diff <update-file>",
		Short: "re-encode only the portion of an update a peer state vector hasn't seen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var sv *crdt.StateVector
			if svPath != "" {
				svBytes, err := os.ReadFile(svPath)
				if err != nil {
					return err
				}
				sv, err = crdt.DecodeStateVector(svBytes)
				if err != nil {
					return err
				}
			} else {
				sv = crdt.NewStateVector()
			}
			out, err := crdt.DiffUpdates(data, sv)
			if err != nil {
				return err
			}
			return writeOutput(outPath, out)
		},
	}
	cmd.Flags().StringVar(&svPath, "sv", "", "path to the peer's encoded state vector (default: empty)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default: stdout, base64)")
	return cmd
}

func newSVCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "sv <update-file>",
		Short: "print the state vector an update advances a recipient to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sv, err := crdt.EncodeStateVectorFromUpdate(data)
			if err != nil {
				return err
			}
			return writeOutput(outPath, sv)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default: stdout, base64)")
	return cmd
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		fmt.Println(base64.StdEncoding.EncodeToString(data))
		return nil
	}
	return os.WriteFile(path, data, 0o644)
}
