package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ferrule/hoard/internal/catalog"
	"github.com/ferrule/hoard/internal/client"
	"github.com/ferrule/hoard/internal/download"
	"github.com/ferrule/hoard/internal/output"
	"github.com/ferrule/hoard/internal/search"
	"github.com/ferrule/hoard/internal/utils"
)

func newGetCmd() *cobra.Command {
	var (
		text    string
		tagArgs []string
		exts    []string
		destDir string
		retries int
		yes     bool
	)

	cmd := &cobra.Command{
		Use:   "get [URL]... [--text QUERY] [--tag key=value] [--output DIR]",
		Short: "Download catalog files, resuming partials",
		Long:  "Download the files selected by URL arguments or by search filters into the output directory, preserving the catalog's relative paths. Interrupted downloads resume from where they stopped.",
		Run: func(cmd *cobra.Command, args []string) {
			ix, err := buildIndex()
			if err != nil {
				output.PrintError(fmt.Sprintf("Failed to build search index: %v", err))
				os.Exit(1)
			}

			var entries []catalog.Entry
			if len(args) > 0 {
				cat, err := loadCatalog()
				if err != nil {
					output.PrintError(fmt.Sprintf("Failed to load catalog: %v", err))
					os.Exit(1)
				}
				for _, url := range args {
					entry, ok := cat.Get(url)
					if !ok {
						output.PrintError(fmt.Sprintf("Not in catalog: %s", url))
						os.Exit(1)
					}
					entries = append(entries, entry)
				}
			} else {
				entries = ix.Query(search.Query{
					Text:       text,
					Tags:       utils.ParseTagArgs(tagArgs),
					Extensions: exts,
				})
			}
			if len(entries) == 0 {
				output.PrintWarning("Nothing to download")
				return
			}
			if len(entries) > 10 && !yes {
				output.PrintWarning(fmt.Sprintf("Selection matches %d files; pass --yes to confirm", len(entries)))
				return
			}

			mgr := download.NewManager(client.NewHTTPClient(globalHTTPConfig), download.WithMaxRetries(retries))
			jobs, err := mgr.Enqueue(entries, destDir)
			if err != nil {
				output.PrintError(fmt.Sprintf("Enqueue failed: %v", err))
				if len(jobs) == 0 {
					os.Exit(1)
				}
				output.PrintWarning(fmt.Sprintf("Continuing with %d accepted job(s)", len(jobs)))
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			display := output.NewManager()
			for _, job := range jobs {
				display.Register(job.ID, job.Entry.RelPath())
			}
			display.StartDisplay()

			var drainWg sync.WaitGroup
			drainWg.Add(1)
			go func() {
				defer drainWg.Done()
				for ev := range mgr.Events() {
					switch ev.Kind {
					case download.EventStateChanged:
						display.SetStatus(ev.JobID, ev.State.String(), ev.Err)
					case download.EventProgress:
						display.SetProgress(ev.JobID, ev.BytesDone, ev.BytesTotal)
					}
				}
			}()

			runErr := mgr.Start(ctx, workers)
			drainWg.Wait()
			display.StopDisplay()
			if runErr != nil {
				output.PrintError("Encountered failed download(s)")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Substring of the file name, case-insensitive")
	cmd.Flags().StringArrayVar(&tagArgs, "tag", []string{}, "Tag filter like platform=...; repeatable")
	cmd.Flags().StringArrayVar(&exts, "ext", []string{}, "File extension filter; repeatable")
	cmd.Flags().StringVarP(&destDir, "output", "o", "downloads", "Destination directory")
	cmd.Flags().IntVar(&retries, "retries", download.DefaultMaxRetries, "Attempts per file before giving up")
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the large-selection confirmation")
	return cmd
}
