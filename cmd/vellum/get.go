package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aretw0/vellum/pkg/core"
)

var (
	getJSON bool
	getLang string
)

type resourceView struct {
	Path       string         `json:"path"`
	Format     string         `json:"format"`
	Version    string         `json:"version,omitempty"`
	Title      string         `json:"title"`
	Properties map[string]any `json:"properties"`
	Links      []string       `json:"links,omitempty"`
	Children   []string       `json:"children,omitempty"`
}

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Show a resource",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		site := openSite()
		ctx := cmd.Context()
		if getLang != "" {
			ctx = core.WithLanguages(ctx, getLang)
		}

		var view resourceView
		err := site.View(ctx, func(ctx context.Context, store *core.Store) error {
			res, err := store.GetResource(ctx, args[0])
			if err != nil {
				return err
			}
			view = resourceView{
				Path:       res.Path(),
				Format:     res.Format(),
				Version:    res.Version(),
				Title:      res.Title(ctx),
				Properties: map[string]any{},
				Links:      res.Links(),
			}
			for name, p := range res.Metadata().Properties {
				switch p.Kind {
				case core.Multilingual:
					view.Properties[name] = p.Lang
				case core.Multiple:
					view.Properties[name] = p.Values
				default:
					view.Properties[name] = p.Value
				}
			}
			if res.IsFolder() {
				children, err := store.Children(ctx, res.Path())
				if err != nil {
					return err
				}
				for _, c := range children {
					view.Children = append(view.Children, c.Name())
				}
			}
			return nil
		})
		if err != nil {
			fatal("Failed to read resource", err)
		}

		if getJSON {
			printJSON(view)
			return
		}

		fmt.Printf("%s %s\n", color.CyanString(view.Path), color.New(color.Faint).Sprintf("(%s)", view.Format))
		if view.Title != "" {
			fmt.Println(color.New(color.Bold).Sprint(view.Title))
		}
		names := make([]string, 0, len(view.Properties))
		for name := range view.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s: %v\n", color.YellowString(name), view.Properties[name])
		}
		for _, l := range view.Links {
			fmt.Printf("  -> %s\n", l)
		}
		for _, c := range view.Children {
			fmt.Printf("  %s\n", c)
		}
	},
}

func init() {
	getCmd.Flags().BoolVar(&getJSON, "json", false, "Output in JSON format")
	getCmd.Flags().StringVar(&getLang, "lang", "", "Preferred language of the title")
	rootCmd.AddCommand(getCmd)
}
