package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ferrule/hoard/internal/catalog"
	"github.com/ferrule/hoard/internal/client"
	"github.com/ferrule/hoard/internal/config"
	"github.com/ferrule/hoard/internal/indexer"
	"github.com/ferrule/hoard/internal/output"
	"github.com/ferrule/hoard/internal/store"
)

func newIndexCmd() *cobra.Command {
	var maxDepth int

	cmd := &cobra.Command{
		Use:   "index [URL]",
		Short: "Crawl a directory-listing mirror into the local catalog",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(configPath)
			if err != nil {
				output.PrintError(fmt.Sprintf("Failed to load config: %v", err))
				os.Exit(1)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var processed atomic.Int64
			ix := indexer.New(client.NewFetcher(client.NewHTTPClient(globalHTTPConfig)))
			cat, err := ix.Build(ctx, args[0], indexer.Options{
				MaxDepth:       maxDepth,
				Concurrency:    workers,
				IgnoredFolders: cfg.IgnoredFolders,
				Progress: func(msg string) {
					n := processed.Add(1)
					if n%50 == 0 {
						output.PrintDetail(fmt.Sprintf("%d folders processed", n))
					}
				},
			})
			var partial *catalog.PartialCatalogError
			if err != nil && !errors.As(err, &partial) {
				output.PrintError(fmt.Sprintf("Index failed: %v", err))
				os.Exit(1)
			}

			if err := saveCatalog(cat); err != nil {
				output.PrintError(fmt.Sprintf("Failed to save catalog: %v", err))
				os.Exit(1)
			}

			files := cat.Files()
			output.PrintSuccess(fmt.Sprintf("Indexed %d entries (%d files) under %s", cat.Len(), len(files), cat.RootURL))
			if partial != nil {
				output.PrintWarning(fmt.Sprintf("%d subtree(s) could not be crawled:", len(partial.Failed)))
				for _, f := range partial.Failed {
					output.PrintWarning("  " + f.URL)
				}
				output.PrintInfo("Re-run 'hoard refresh' on those paths to retry")
			}
		},
	}

	cmd.Flags().IntVarP(&maxDepth, "depth", "d", 0, "Maximum directory depth to crawl (0 = unlimited)")
	return cmd
}

func saveCatalog(cat *catalog.Catalog) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Save(cat)
}

func loadCatalog() (*catalog.Catalog, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Load()
}
