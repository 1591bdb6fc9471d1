package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aretw0/vellum/pkg/adapters/fs"
)

var watchPattern string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reindex the catalog on external edits",
	Long: `Watch the site files and rebuild the catalog after every external edit,
until interrupted.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		site := openSite()
		fmt.Println("Watching", site.Path())
		err := site.Watch(cmd.Context(), watchPattern, func(e fs.Event) {
			ts := time.Unix(e.Timestamp, 0).Format(time.TimeOnly)
			fmt.Printf("%s %s %s\n", color.New(color.Faint).Sprint(ts), color.CyanString("%-9s", e.Type), e.Path)
		})
		if err != nil {
			fatal("Watch failed", err)
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchPattern, "pattern", "", "Glob of the files to watch (default: all)")
	rootCmd.AddCommand(watchCmd)
}
