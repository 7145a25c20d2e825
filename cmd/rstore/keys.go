package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mirkobrombin/go-rstore/v1/codec"
	"github.com/mirkobrombin/go-rstore/v1/handle"
	"github.com/mirkobrombin/go-rstore/v1/store"
	"github.com/mirkobrombin/go-rstore/v1/tree"
)

var (
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "List or flush keys",
	}

	scanCmd = &cobra.Command{
		Use:   "scan [pattern]",
		Short: "List keys matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := store.ScanKeys(cmd.Context(), client, codec.EscapeKey(args[0]))
			if err != nil {
				return err
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), codec.UnescapeKey(k))
			}
			return nil
		},
	}

	flushCmd = &cobra.Command{
		Use:   "flush [pattern]",
		Short: "Delete keys matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := store.FlushKeys(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted=%d\n", n)
			return nil
		},
	}

	mapCmd = &cobra.Command{
		Use:   "map [name]",
		Short: "Print a hierarchical map as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := tree.New(cmd.Context(), client, args[0], handle.Lookup())
			if err != nil {
				return err
			}
			v, ok, err := m.Load(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("map %q does not exist", args[0])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(jsonable(v))
		},
	}
)

func init() {
	keysCmd.AddCommand(scanCmd, flushCmd)
}

// jsonable turns set-like maps into sorted lists so they can be encoded.
func jsonable(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = jsonable(e)
		}
		return out
	case map[any]struct{}:
		out := make([]string, 0, len(t))
		for k := range t {
			out = append(out, fmt.Sprint(k))
		}
		sort.Strings(out)
		return out
	}
	return v
}
