package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/vellum/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site over the JSON HTTP API",
	Long: `Serve the site over HTTP until interrupted.
Mutating requests take their author from the X-Author-Name and X-Author-Email
headers and their commit message from X-Change-Reason.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		addr := serveAddr
		if addr == "" {
			addr = os.Getenv(envAddr)
		}
		site := openSite()
		srv := server.New(site, server.Config{Addr: addr, Logger: slog.Default()})
		if err := srv.ListenAndServe(cmd.Context()); err != nil {
			fatal("Server failed", err)
		}
		slog.Info("server stopped")
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default :8080, or $VELLUM_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
