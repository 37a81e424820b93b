package indexer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ferrule/hoard/internal/catalog"
	"github.com/ferrule/hoard/internal/client"
	"github.com/ferrule/hoard/internal/listing"
)

type Options struct {
	MaxDepth    int // directory depth limit, <=0 means unbounded
	Concurrency int
	// Ignored path segments, matched case-insensitively as substrings of
	// the decoded directory name.
	IgnoredFolders []string
	// Progress receives a short status line as each directory finishes.
	// Optional; called from worker goroutines.
	Progress func(msg string)
}

func (o Options) workers() int {
	if o.Concurrency <= 0 {
		return 8
	}
	return o.Concurrency
}

// Indexer crawls a directory-listing tree into a catalog. Traversal is
// breadth-first so shallow entries surface before any deep branch is
// exhausted, with up to Concurrency sibling fetches in flight.
type Indexer struct {
	fetcher *client.Fetcher
}

func New(fetcher *client.Fetcher) *Indexer {
	return &Indexer{fetcher: fetcher}
}

type dirTask struct {
	url  string
	path []string
}

type dirResult struct {
	task    dirTask
	links   []listing.RawLink
	fetched time.Time
	err     error
}

// Build crawls the tree under rootURL. A root that cannot be fetched or
// parsed is fatal; any other directory failure is recorded against that
// subtree and its siblings continue. The returned error is a
// *catalog.PartialCatalogError when subtrees failed, nil otherwise; the
// catalog is usable either way. Cancelling ctx stops the crawl and returns
// whatever was accumulated.
func (ix *Indexer) Build(ctx context.Context, rootURL string, opts Options) (*catalog.Catalog, error) {
	cat := catalog.New(rootURL)
	root := dirTask{url: cat.RootURL}

	res := ix.crawlDir(ctx, root)
	if res.err != nil {
		return nil, &catalog.RootUnreachableError{URL: cat.RootURL, Err: res.err}
	}
	cat.FetchedAt[root.url] = res.fetched

	visited := map[string]bool{root.url: true}
	frontier := ix.absorb(cat, visited, []dirResult{res}, opts)

	for depth := 1; len(frontier) > 0; depth++ {
		if opts.MaxDepth > 0 && depth > opts.MaxDepth {
			break
		}
		if ctx.Err() != nil {
			break
		}
		results := ix.crawlLevel(ctx, frontier, opts)
		frontier = ix.absorb(cat, visited, results, opts)
	}

	log.Info().Str("op", "indexer/build").Int("entries", cat.Len()).Int("failed", len(cat.Failed)).Msg(cat.RootURL)
	if len(cat.Failed) > 0 {
		return cat, &catalog.PartialCatalogError{Failed: cat.Failed}
	}
	return cat, nil
}

// crawlLevel fans one BFS depth out over the worker pool. Sibling
// completion order is unspecified; the catalog is keyed by URL so the
// result is deterministic regardless.
func (ix *Indexer) crawlLevel(ctx context.Context, frontier []dirTask, opts Options) []dirResult {
	taskCh := make(chan dirTask, len(frontier))
	for _, t := range frontier {
		taskCh <- t
	}
	close(taskCh)

	var mu sync.Mutex
	var results []dirResult
	var wg sync.WaitGroup
	for range opts.workers() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				if ctx.Err() != nil {
					return
				}
				res := ix.crawlDir(ctx, task)
				if opts.Progress != nil {
					opts.Progress(decodePath(task.url))
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return results
}

func (ix *Indexer) crawlDir(ctx context.Context, task dirTask) dirResult {
	res := dirResult{task: task, fetched: time.Now()}
	status, body, err := ix.fetcher.Fetch(ctx, task.url)
	if err != nil {
		res.err = err
		return res
	}
	if status != http.StatusOK {
		res.err = &catalog.NetworkError{URL: task.url, Err: fmt.Errorf("unexpected status %d", status)}
		return res
	}
	res.links, res.err = listing.Parse(task.url, body)
	return res
}

// absorb merges one level of results into the catalog and returns the next
// BFS frontier. Failures become recorded subtree errors, never aborts.
func (ix *Indexer) absorb(cat *catalog.Catalog, visited map[string]bool, results []dirResult, opts Options) []dirTask {
	var next []dirTask
	for _, res := range results {
		if res.err != nil {
			log.Warn().Str("op", "indexer/build").Err(res.err).Msg("subtree failed")
			cat.Failed = append(cat.Failed, catalog.SubtreeError{URL: res.task.url, Err: res.err})
			continue
		}
		cat.FetchedAt[res.task.url] = res.fetched
		for _, link := range res.links {
			if visited[link.URL] {
				// Already seen this URL in this run; listings that link
				// back to an ancestor would otherwise loop forever.
				continue
			}
			if link.IsDir && ignoredFolder(link.Name, opts.IgnoredFolders) {
				continue
			}
			entryPath := append(append([]string(nil), res.task.path...), link.Name)
			entry := catalog.Entry{
				Path:         entryPath,
				Name:         link.Name,
				URL:          link.URL,
				Size:         link.Size,
				LastModified: link.LastModified,
			}
			if link.IsDir {
				entry.Kind = catalog.KindDirectory
				entry.Size = -1
				visited[link.URL] = true
				next = append(next, dirTask{url: link.URL, path: entryPath})
			}
			if _, dup := cat.Entries[link.URL]; dup {
				continue
			}
			cat.Entries[link.URL] = entry
		}
	}
	sort.Slice(next, func(i, j int) bool { return next[i].url < next[j].url })
	return next
}

func ignoredFolder(name string, ignored []string) bool {
	lower := strings.ToLower(name)
	for _, ig := range ignored {
		if ig != "" && strings.Contains(lower, ig) {
			return true
		}
	}
	return false
}

func decodePath(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if p, err := url.PathUnescape(u.Path); err == nil {
			return p
		}
		return u.Path
	}
	return rawURL
}
