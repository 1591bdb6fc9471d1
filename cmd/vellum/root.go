package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aretw0/vellum"
	"github.com/aretw0/vellum/pkg/core"
)

// Environment variables read after loading .env.
const (
	envSite        = "VELLUM_SITE"
	envAuthorName  = "VELLUM_AUTHOR_NAME"
	envAuthorEmail = "VELLUM_AUTHOR_EMAIL"
	envAddr        = "VELLUM_ADDR"
)

var (
	verbose     bool
	siteDir     string
	authorName  string
	authorEmail string
	message     string
	changeType  string
	changeScope string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vellum",
	Short: "A transactional resource database for content sites",
	Long: `Vellum stores a tree of resources as plain files.
Every change is one transaction: one git commit, then a catalog update.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		if siteDir == "" {
			siteDir = os.Getenv(envSite)
		}
		if authorName == "" {
			authorName = os.Getenv(envAuthorName)
		}
		if authorEmail == "" {
			authorEmail = os.Getenv(envAuthorEmail)
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVarP(&siteDir, "site", "C", "", "Site directory (default: the site enclosing the working directory, or $VELLUM_SITE)")
	pf.StringVar(&authorName, "author", "", "Author name of the transaction (or $VELLUM_AUTHOR_NAME)")
	pf.StringVar(&authorEmail, "email", "", "Author email of the transaction (or $VELLUM_AUTHOR_EMAIL)")
}

// addChangeFlags registers the change reason flags of a mutating command.
func addChangeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&message, "message", "m", "", "Change reason (commit message)")
	cmd.Flags().StringVarP(&changeType, "type", "t", "", "Change type (feat, fix, docs, refactor, chore)")
	cmd.Flags().StringVarP(&changeScope, "scope", "s", "", "Change scope")
}

// openSite opens the selected site, exiting on failure.
func openSite() *vellum.Site {
	root := siteDir
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			fatal("Failed to get CWD", err)
		}
		if root, err = vellum.FindRoot(wd); err != nil {
			fatal("Not inside a vellum site", err)
		}
	}
	site, err := vellum.Open(root,
		vellum.WithMustExist(true),
		vellum.WithDevSafety(false),
		vellum.WithLogger(slog.Default()),
	)
	if err != nil {
		fatal("Failed to open site", err)
	}
	return site
}

// update runs fn as one transaction. A catalog left stale by a durable
// commit is only reported: the next reindex repairs it.
func update(ctx context.Context, subject string, fn func(ctx context.Context, store *core.Store) error) {
	site := openSite()
	err := site.Update(txContext(ctx, subject), fn)
	if errors.Is(err, core.ErrIndexStale) {
		slog.Warn("change committed but the catalog is stale, run 'vellum reindex'", "error", err)
		return
	}
	if err != nil {
		fatal("Transaction failed", err)
	}
}

// txContext carries the author and the change reason of a mutating command.
// Without --message the reason is derived from the command.
func txContext(ctx context.Context, subject string) context.Context {
	if authorName != "" {
		ctx = core.WithAuthor(ctx, core.Author{Name: authorName, Email: authorEmail})
	}
	var reason string
	switch {
	case message != "" && changeType == "":
		reason = vellum.AppendFooter(message)
	case message != "":
		reason = vellum.FormatChangeReason(changeType, changeScope, message, "")
	default:
		ctype := changeType
		if ctype == "" {
			ctype = vellum.CommitTypeDocs
		}
		reason = vellum.FormatChangeReason(ctype, changeScope, subject, "")
	}
	return core.WithChangeReason(ctx, reason)
}
