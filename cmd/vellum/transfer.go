package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aretw0/vellum/pkg/core"
)

var moveCmd = &cobra.Command{
	Use:   "move <from> <to>",
	Short: "Move or rename a resource",
	Long: `Move a resource and its subtree. Links pointing into the moved subtree are
rewritten in the same transaction.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		transfer(cmd.Context(), args[0], args[1], true)
	},
}

var copyCmd = &cobra.Command{
	Use:   "copy <from> <to>",
	Short: "Copy a resource",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		transfer(cmd.Context(), args[0], args[1], false)
	},
}

func transfer(ctx context.Context, from, to string, move bool) {
	verb := "copy"
	if move {
		verb = "move"
	}
	var dst string
	update(ctx, verb+" "+from+" to "+to, func(ctx context.Context, store *core.Store) error {
		var (
			res *core.Resource
			err error
		)
		if move {
			res, err = store.MoveResource(ctx, from, to)
		} else {
			res, err = store.CopyResource(ctx, from, to)
		}
		if err != nil {
			return err
		}
		dst = res.Path()
		return nil
	})
	if move {
		done("Moved %s to %s", from, dst)
	} else {
		done("Copied %s to %s", from, dst)
	}
}

func init() {
	addChangeFlags(moveCmd)
	addChangeFlags(copyCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(copyCmd)
}
