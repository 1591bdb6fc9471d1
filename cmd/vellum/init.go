package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/vellum"
)

var gitless bool

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a vellum site",
	Long: `Initialize a new site in the given directory (default: the current one).
This creates the root resource and, unless --gitless is set, a git repository.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "."
		if len(args) == 1 {
			path = args[0]
		}

		opts := []vellum.Option{
			vellum.WithDevSafety(false),
			vellum.WithLogger(slog.Default()),
		}
		if gitless {
			opts = append(opts, vellum.WithVersioning(false))
		}
		site, err := vellum.Init(path, opts...)
		if err != nil {
			fatal("Failed to initialize site", err)
		}

		mode := "git"
		if !site.Versioned() {
			mode = "gitless"
		}
		fmt.Printf("Initialized vellum site (%s) in %s\n", mode, site.Path())
	},
}

func init() {
	initCmd.Flags().BoolVar(&gitless, "gitless", false, "Store the site without version control")
	rootCmd.AddCommand(initCmd)
}
