package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aretw0/vellum/pkg/core"
)

var (
	deleteForce bool
	deleteSoft  bool
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <path>",
	Short: "Delete a resource and its subtree",
	Long: `Delete a resource and everything below it.
Resources still linked from outside the subtree are kept unless --force is set.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		action := core.RefRestrict
		if deleteForce {
			action = core.RefForce
		}
		var opts []core.DeleteOption
		if deleteSoft {
			opts = append(opts, core.Soft())
		}
		update(cmd.Context(), "delete "+path, func(ctx context.Context, store *core.Store) error {
			return store.DelResource(ctx, path, action, opts...)
		})
		done("Deleted %s", path)
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Delete even when other resources link to it")
	deleteCmd.Flags().BoolVar(&deleteSoft, "if-exists", false, "Do nothing when the resource is missing")
	addChangeFlags(deleteCmd)
	rootCmd.AddCommand(deleteCmd)
}
