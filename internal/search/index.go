package search

import (
	"sort"
	"strings"

	"github.com/ferrule/hoard/internal/catalog"
)

// Query is a pure filter value. Zero value matches every file entry.
type Query struct {
	Text       string            // case-insensitive substring of the file name
	Tags       map[string]string // category -> required value
	Extensions []string          // any-of, without the leading dot
}

// Index is an immutable projection of one catalog version: file entries in
// canonical order with their extracted tags. Rebuild it when the catalog
// version changes; never mutate it. Querying the same index with the same
// query always yields the same sequence.
type Index struct {
	version uint64
	entries []catalog.Entry
	lower   []string            // lower-cased names, aligned with entries
	tags    []map[string]string // extracted tags, aligned with entries
	vocab   map[string][]string
}

func Build(cat *catalog.Catalog, ex TagExtractor) *Index {
	files := cat.Files()
	ix := &Index{
		version: cat.Version,
		entries: files,
		lower:   make([]string, len(files)),
		tags:    make([]map[string]string, len(files)),
		vocab:   make(map[string][]string),
	}
	vocabSets := make(map[string]map[string]bool)
	for i, e := range files {
		ix.lower[i] = strings.ToLower(e.Name)
		tags := ex.Extract(e)
		ix.tags[i] = tags
		for category, value := range tags {
			set := vocabSets[category]
			if set == nil {
				set = make(map[string]bool)
				vocabSets[category] = set
			}
			// Multi-valued categories (languages) contribute each element.
			for _, v := range strings.Split(value, ",") {
				if v = strings.TrimSpace(v); v != "" {
					set[v] = true
				}
			}
		}
	}
	for category, set := range vocabSets {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		ix.vocab[category] = values
	}
	return ix
}

func (ix *Index) Version() uint64 {
	return ix.version
}

// Vocabulary maps each tag category to its known values, discovered by
// scanning the catalog once at build time. This is what a query layer
// offers the user as filter options.
func (ix *Index) Vocabulary() map[string][]string {
	return ix.vocab
}

// Tags returns the extracted tags for an entry previously returned by
// Query, keyed by URL. Nil for unknown URLs.
func (ix *Index) Tags(url string) map[string]string {
	for i, e := range ix.entries {
		if e.URL == url {
			return ix.tags[i]
		}
	}
	return nil
}

// Query filters the file entries. Results keep the canonical order: path
// depth first, then name. An empty query returns every file entry.
func (ix *Index) Query(q Query) []catalog.Entry {
	text := strings.ToLower(q.Text)
	exts := make(map[string]bool, len(q.Extensions))
	for _, e := range q.Extensions {
		exts[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}

	var out []catalog.Entry
	for i, e := range ix.entries {
		if text != "" && !strings.Contains(ix.lower[i], text) {
			continue
		}
		if len(exts) > 0 && !exts[e.Ext()] {
			continue
		}
		if !tagsMatch(ix.tags[i], q.Tags) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func tagsMatch(have, want map[string]string) bool {
	for category, value := range want {
		got, ok := have[category]
		if !ok {
			return false
		}
		if !strings.EqualFold(got, value) && !containsElement(got, value) {
			return false
		}
	}
	return true
}

// containsElement matches one element of a comma-joined value, so a
// language filter of "EN" matches an entry tagged "EN,FR,DE".
func containsElement(joined, value string) bool {
	for _, part := range strings.Split(joined, ",") {
		if strings.EqualFold(strings.TrimSpace(part), value) {
			return true
		}
	}
	return false
}
