package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/vellum/pkg/core"
)

var (
	setLang  string
	setUnset bool
)

// setCmd represents the set command
var setCmd = &cobra.Command{
	Use:   "set <path> <name> [value...]",
	Short: "Set or remove a property",
	Long: `Set a property of a resource. Multiple properties take every value given;
other properties take the values joined by spaces. With --unset the property is removed.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		path, name, values := args[0], args[1], args[2:]
		update(cmd.Context(), "set "+name+" of "+path, func(ctx context.Context, store *core.Store) error {
			res, err := store.GetResource(ctx, path)
			if err != nil {
				return err
			}
			if setUnset || len(values) == 0 {
				return res.DelProperty(name)
			}
			if f, ok := res.Class().Field(name); ok && f.Kind == core.Multiple {
				return res.SetValues(name, values...)
			}
			if p, ok := res.Property(name); ok && p.Kind == core.Multiple {
				return res.SetValues(name, values...)
			}
			return res.SetValue(name, strings.Join(values, " "), setLang)
		})
		done("Updated %s of %s", name, path)
	},
}

func init() {
	setCmd.Flags().StringVar(&setLang, "lang", "", "Language of a multilingual value")
	setCmd.Flags().BoolVar(&setUnset, "unset", false, "Remove the property")
	addChangeFlags(setCmd)
	rootCmd.AddCommand(setCmd)
}
