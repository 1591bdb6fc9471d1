package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aretw0/vellum/pkg/core"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log <path>",
	Short: "Show the revisions of a resource",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		site := openSite()
		var revs []core.Revision
		err := site.View(cmd.Context(), func(ctx context.Context, store *core.Store) error {
			var err error
			revs, err = store.Revisions(ctx, args[0], logLimit)
			return err
		})
		if err != nil {
			fatal("Failed to read history", err)
		}
		for _, rev := range revs {
			subject, _, _ := strings.Cut(rev.Message, "\n")
			hash := rev.Hash
			if len(hash) > 8 {
				hash = hash[:8]
			}
			fmt.Printf("%s %s %s %s\n",
				color.YellowString(hash),
				rev.Date.Format("2006-01-02 15:04"),
				color.New(color.Faint).Sprint(rev.Author.String()),
				subject,
			)
		}
	},
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 10, "Maximum number of revisions (0 for all)")
	rootCmd.AddCommand(logCmd)
}
