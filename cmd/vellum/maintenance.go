package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aretw0/vellum/pkg/core"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the catalog from the files",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		site := openSite()
		n, err := site.Reindex(cmd.Context())
		if err != nil {
			fatal("Failed to reindex", err)
		}
		done("Indexed %d resources", n)
	},
}

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that the files match the last commit",
	Long: `Verify that the working tree holds no uncommitted change.
Exits with status 1 when the site is inconsistent.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		site := openSite()
		files, err := site.Check(cmd.Context())
		if err != nil && !errors.Is(err, core.ErrInconsistent) {
			fatal("Failed to check site", err)
		}
		if checkJSON {
			printJSON(map[string]any{"consistent": err == nil, "files": files})
		} else if err == nil {
			done("Site is consistent")
		} else {
			fmt.Println(color.RedString("Site is inconsistent:"))
			for _, f := range files {
				fmt.Printf("  %-2s %s\n", f.Code, f.Path)
			}
		}
		if err != nil {
			os.Exit(1)
		}
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(checkCmd)
}
