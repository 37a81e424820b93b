package catalog

import (
	"sort"
	"strings"
	"time"
)

// Catalog is the indexed view of a remote directory tree. A catalog is
// never mutated after publication; the indexer builds a new version and
// hands out the old one untouched, so readers can hold a snapshot for as
// long as they like.
type Catalog struct {
	RootURL   string
	Version   uint64
	Entries   map[string]Entry     // keyed by absolute URL
	FetchedAt map[string]time.Time // keyed by directory URL
	Failed    []SubtreeError
}

func New(rootURL string) *Catalog {
	return &Catalog{
		RootURL:   strings.TrimRight(rootURL, "/") + "/",
		Version:   1,
		Entries:   make(map[string]Entry),
		FetchedAt: make(map[string]time.Time),
	}
}

// Clone returns a deep copy with the version bumped. Used by the indexer
// for replace-don't-mutate subtree refreshes.
func (c *Catalog) Clone() *Catalog {
	next := &Catalog{
		RootURL:   c.RootURL,
		Version:   c.Version + 1,
		Entries:   make(map[string]Entry, len(c.Entries)),
		FetchedAt: make(map[string]time.Time, len(c.FetchedAt)),
		Failed:    append([]SubtreeError(nil), c.Failed...),
	}
	for k, v := range c.Entries {
		next.Entries[k] = v
	}
	for k, v := range c.FetchedAt {
		next.FetchedAt[k] = v
	}
	return next
}

func (c *Catalog) Get(url string) (Entry, bool) {
	e, ok := c.Entries[url]
	return e, ok
}

func (c *Catalog) Len() int {
	return len(c.Entries)
}

// Files returns all file entries ordered by path depth, then name. This
// is the canonical presentation order for search results.
func (c *Catalog) Files() []Entry {
	var files []Entry
	for _, e := range c.Entries {
		if e.Kind == KindFile {
			files = append(files, e)
		}
	}
	SortEntries(files)
	return files
}

// SubtreeEntries returns every entry at or below the given catalog path.
// An empty path selects the whole tree.
func (c *Catalog) SubtreeEntries(segments []string) []Entry {
	var out []Entry
	for _, e := range c.Entries {
		if underSubtree(e.Path, segments) {
			out = append(out, e)
		}
	}
	SortEntries(out)
	return out
}

// DropSubtree removes every entry at or below the given path. Used when a
// refresh replaces a subtree wholesale.
func (c *Catalog) DropSubtree(segments []string) {
	for url, e := range c.Entries {
		if underSubtree(e.Path, segments) {
			delete(c.Entries, url)
		}
	}
}

func underSubtree(entryPath, subtree []string) bool {
	if len(subtree) == 0 {
		return true
	}
	if len(entryPath) < len(subtree) {
		return false
	}
	for i, seg := range subtree {
		if entryPath[i] != seg {
			return false
		}
	}
	return true
}

func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if d1, d2 := entries[i].Depth(), entries[j].Depth(); d1 != d2 {
			return d1 < d2
		}
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].URL < entries[j].URL
	})
}
