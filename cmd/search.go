package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ferrule/hoard/internal/config"
	"github.com/ferrule/hoard/internal/output"
	"github.com/ferrule/hoard/internal/search"
	"github.com/ferrule/hoard/internal/utils"
)

func newSearchCmd() *cobra.Command {
	var (
		text      string
		tagArgs   []string
		exts      []string
		listTags  bool
		limit     int
		showPaths bool
	)

	cmd := &cobra.Command{
		Use:   "search [--text QUERY] [--tag key=value] [--ext zip]",
		Short: "Search the stored catalog",
		Run: func(cmd *cobra.Command, args []string) {
			ix, err := buildIndex()
			if err != nil {
				output.PrintError(fmt.Sprintf("Failed to build search index: %v", err))
				os.Exit(1)
			}

			if listTags {
				printVocabulary(ix)
				return
			}

			results := ix.Query(search.Query{
				Text:       text,
				Tags:       utils.ParseTagArgs(tagArgs),
				Extensions: exts,
			})
			if len(results) == 0 {
				output.PrintWarning("No matches")
				return
			}
			shown := results
			if limit > 0 && len(shown) > limit {
				shown = shown[:limit]
			}
			for _, e := range shown {
				size := "?"
				if e.Size >= 0 {
					size = output.FormatBytes(uint64(e.Size))
				}
				name := search.Title(e)
				if showPaths {
					name = e.RelPath()
				}
				fmt.Printf("  %s %s %s\n", output.StyleSymbols["bullet"], name, fmt.Sprintf("(%s)", size))
			}
			if len(shown) < len(results) {
				output.PrintInfo(fmt.Sprintf("... and %d more (raise --limit to see them)", len(results)-len(shown)))
			}
			output.PrintDetail(fmt.Sprintf("%d match(es), catalog version %d", len(results), ix.Version()))
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Substring of the file name, case-insensitive")
	cmd.Flags().StringArrayVar(&tagArgs, "tag", []string{}, "Tag filter like platform=... region=... language=...; repeatable")
	cmd.Flags().StringArrayVar(&exts, "ext", []string{}, "File extension filter; repeatable")
	cmd.Flags().BoolVar(&listTags, "tags", false, "List the tag values discovered in the catalog")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum results to print (0 = all)")
	cmd.Flags().BoolVar(&showPaths, "paths", false, "Print full catalog paths instead of titles")
	return cmd
}

func buildIndex() (*search.Index, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return search.Build(cat, search.NewDefaultExtractor(cfg)), nil
}

func printVocabulary(ix *search.Index) {
	vocab := ix.Vocabulary()
	categories := make([]string, 0, len(vocab))
	for c := range vocab {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		output.PrintHeader(c)
		for _, v := range vocab[c] {
			fmt.Printf("  %s %s\n", output.StyleSymbols["bullet"], v)
		}
	}
}
