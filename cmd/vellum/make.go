package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aretw0/vellum/pkg/core"
)

var (
	makeProps []string
	makeTitle string
)

// makeCmd represents the make command
var makeCmd = &cobra.Command{
	Use:   "make <path> <format>",
	Short: "Create a resource",
	Long: `Create a resource of the given class.
A path ending in "/" creates the resource under an automatic name in that folder.`,
	Example: `  vellum make /about page --title "About us" --set subject=company
  vellum make /news/ page --title "Launch"`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		path, format := args[0], args[1]
		var created string
		update(cmd.Context(), "create "+path, func(ctx context.Context, store *core.Store) error {
			class, err := store.Registry().Get(format)
			if err != nil {
				return err
			}
			props, err := parseProps(class, makeProps)
			if err != nil {
				return err
			}
			if makeTitle != "" {
				props[core.PropTitle] = makeTitle
			}
			res, err := store.MakeResource(ctx, path, format, props)
			if err != nil {
				return err
			}
			created = res.Path()
			return nil
		})
		done("Created %s", created)
	},
}

func init() {
	makeCmd.Flags().StringArrayVar(&makeProps, "set", nil, "Property as name=value (repeatable)")
	makeCmd.Flags().StringVar(&makeTitle, "title", "", "Title of the resource")
	addChangeFlags(makeCmd)
	rootCmd.AddCommand(makeCmd)
}
