package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ferrule/hoard/internal/catalog"
	"github.com/ferrule/hoard/internal/client"
	"github.com/ferrule/hoard/internal/config"
	"github.com/ferrule/hoard/internal/indexer"
	"github.com/ferrule/hoard/internal/output"
)

func newRefreshCmd() *cobra.Command {
	var maxDepth int

	cmd := &cobra.Command{
		Use:   "refresh [PATH]",
		Short: "Re-crawl one subtree of the stored catalog",
		Long:  "Re-crawl the catalog subtree at PATH (slash-separated, relative to the mirror root) and merge the result into a new catalog version.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(configPath)
			if err != nil {
				output.PrintError(fmt.Sprintf("Failed to load config: %v", err))
				os.Exit(1)
			}
			cat, err := loadCatalog()
			if err != nil {
				output.PrintError(fmt.Sprintf("Failed to load catalog: %v", err))
				os.Exit(1)
			}

			segments := splitCatalogPath(args[0])
			if len(segments) == 0 {
				output.PrintError("PATH must name a subtree; to re-crawl everything run 'hoard index' again")
				os.Exit(1)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ix := indexer.New(client.NewFetcher(client.NewHTTPClient(globalHTTPConfig)))
			next, err := ix.RefreshSubtree(ctx, cat, segments, indexer.Options{
				MaxDepth:       maxDepth,
				Concurrency:    workers,
				IgnoredFolders: cfg.IgnoredFolders,
			})
			var partial *catalog.PartialCatalogError
			if err != nil && !errors.As(err, &partial) {
				output.PrintError(fmt.Sprintf("Refresh failed: %v", err))
				os.Exit(1)
			}
			if err := saveCatalog(next); err != nil {
				output.PrintError(fmt.Sprintf("Failed to save catalog: %v", err))
				os.Exit(1)
			}
			output.PrintSuccess(fmt.Sprintf("Refreshed %s (catalog version %d, %d entries)", args[0], next.Version, next.Len()))
			if partial != nil {
				output.PrintWarning(fmt.Sprintf("%d subtree(s) under %s still failing", len(partial.Failed), args[0]))
			}
		},
	}

	cmd.Flags().IntVarP(&maxDepth, "depth", "d", 0, "Maximum directory depth to crawl (0 = unlimited)")
	return cmd
}

func splitCatalogPath(p string) []string {
	var segments []string
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
