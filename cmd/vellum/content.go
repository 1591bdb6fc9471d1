package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/vellum/pkg/core"
)

// defaultHandler picks the only handler of a class when none is named.
func defaultHandler(res *core.Resource, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if hs := res.Class().Handlers; len(hs) == 1 {
		return hs[0]
	}
	return ""
}

var catCmd = &cobra.Command{
	Use:   "cat <path> [handler]",
	Short: "Print the content of a resource handler",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		site := openSite()
		var data []byte
		err := site.View(cmd.Context(), func(ctx context.Context, store *core.Store) error {
			res, err := store.GetResource(ctx, args[0])
			if err != nil {
				return err
			}
			h, err := res.Handler(defaultHandler(res, args[1:]))
			if err != nil {
				return err
			}
			data, err = h.Data(ctx)
			return err
		})
		if err != nil {
			fatal("Failed to read content", err)
		}
		_, _ = os.Stdout.Write(data)
	},
}

var putCmd = &cobra.Command{
	Use:   "put <path> [handler]",
	Short: "Replace the content of a resource handler with stdin",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fatal("Failed to read stdin", err)
		}
		update(cmd.Context(), "update content of "+args[0], func(ctx context.Context, store *core.Store) error {
			res, err := store.GetResource(ctx, args[0])
			if err != nil {
				return err
			}
			h, err := res.Handler(defaultHandler(res, args[1:]))
			if err != nil {
				return err
			}
			return h.SetData(ctx, data)
		})
		done("Wrote %d bytes to %s", len(data), args[0])
	},
}

func init() {
	addChangeFlags(putCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(putCmd)
}
