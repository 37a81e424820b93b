package indexer

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ferrule/hoard/internal/catalog"
)

// RefreshSubtree re-crawls one subtree and merges the result into a copy
// of the catalog. The input catalog is never touched, so readers holding
// the old snapshot are unaffected; the returned catalog carries a bumped
// version. Failure to fetch the subtree root leaves the old data in place
// and reports the error.
func (ix *Indexer) RefreshSubtree(ctx context.Context, cat *catalog.Catalog, segments []string, opts Options) (*catalog.Catalog, error) {
	subURL := subtreeURL(cat.RootURL, segments)

	res := ix.crawlDir(ctx, dirTask{url: subURL, path: segments})
	if res.err != nil {
		return cat, &catalog.RootUnreachableError{URL: subURL, Err: res.err}
	}

	next := cat.Clone()
	next.DropSubtree(segments)
	// The drop removes the subtree's own directory entry too, but the
	// re-crawl only discovers its children; put the root back so the tree
	// stays connected. Empty segments mean the catalog root, which has no
	// entry of its own.
	if len(segments) > 0 {
		if root, ok := cat.Get(subURL); ok {
			next.Entries[subURL] = root
		} else {
			next.Entries[subURL] = catalog.Entry{
				Path: segments,
				Name: segments[len(segments)-1],
				Kind: catalog.KindDirectory,
				URL:  subURL,
				Size: -1,
			}
		}
	}
	dropFailedUnder(next, subURL)
	next.FetchedAt[subURL] = res.fetched
	prevFailed := len(next.Failed)

	visited := map[string]bool{subURL: true}
	frontier := ix.absorb(next, visited, []dirResult{res}, opts)

	for depth := len(segments) + 1; len(frontier) > 0; depth++ {
		if opts.MaxDepth > 0 && depth > opts.MaxDepth {
			break
		}
		if ctx.Err() != nil {
			break
		}
		results := ix.crawlLevel(ctx, frontier, opts)
		frontier = ix.absorb(next, visited, results, opts)
	}

	log.Info().Str("op", "indexer/refresh").Int("entries", next.Len()).Uint64("version", next.Version).Msg(subURL)
	if failedSince := next.Failed[prevFailed:]; len(failedSince) > 0 {
		return next, &catalog.PartialCatalogError{Failed: failedSince}
	}
	return next, nil
}

func subtreeURL(rootURL string, segments []string) string {
	u := strings.TrimRight(rootURL, "/")
	for _, seg := range segments {
		u += "/" + url.PathEscape(seg)
	}
	return u + "/"
}

// dropFailedUnder clears recorded failures for the subtree being
// refreshed; a successful re-crawl supersedes them.
func dropFailedUnder(cat *catalog.Catalog, subURL string) {
	kept := cat.Failed[:0]
	for _, f := range cat.Failed {
		if !strings.HasPrefix(f.URL, subURL) {
			kept = append(kept, f)
		}
	}
	cat.Failed = kept
}
