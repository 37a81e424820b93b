package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(kind Kind, url string, path ...string) Entry {
	return Entry{
		Path: path,
		Name: path[len(path)-1],
		Kind: kind,
		URL:  url,
		Size: 100,
	}
}

func sampleCatalog() *Catalog {
	cat := New("http://mirror.test")
	for _, e := range []Entry{
		entry(KindDirectory, "http://mirror.test/A/", "A"),
		entry(KindDirectory, "http://mirror.test/A/B/", "A", "B"),
		entry(KindFile, "http://mirror.test/A/mid.zip", "A", "mid.zip"),
		entry(KindFile, "http://mirror.test/A/B/deep.zip", "A", "B", "deep.zip"),
		entry(KindFile, "http://mirror.test/top.zip", "top.zip"),
	} {
		cat.Entries[e.URL] = e
	}
	cat.FetchedAt["http://mirror.test/"] = time.Now()
	return cat
}

func TestNewNormalizesRootURL(t *testing.T) {
	assert.Equal(t, "http://mirror.test/", New("http://mirror.test").RootURL)
	assert.Equal(t, "http://mirror.test/", New("http://mirror.test/").RootURL)
	assert.Equal(t, "http://mirror.test/roms/", New("http://mirror.test/roms//").RootURL)
}

func TestFilesOrder(t *testing.T) {
	files := sampleCatalog().Files()
	require.Len(t, files, 3)
	assert.Equal(t, "top.zip", files[0].Name, "shallower entries come first")
	assert.Equal(t, "mid.zip", files[1].Name)
	assert.Equal(t, "deep.zip", files[2].Name)
}

func TestCloneIsIndependent(t *testing.T) {
	cat := sampleCatalog()
	next := cat.Clone()

	assert.Equal(t, cat.Version+1, next.Version)
	assert.Equal(t, cat.Len(), next.Len())

	delete(next.Entries, "http://mirror.test/top.zip")
	next.FetchedAt["http://mirror.test/A/"] = time.Now()

	_, ok := cat.Get("http://mirror.test/top.zip")
	assert.True(t, ok, "mutating the clone must not touch the original")
	_, ok = cat.FetchedAt["http://mirror.test/A/"]
	assert.False(t, ok)
}

func TestSubtreeEntries(t *testing.T) {
	cat := sampleCatalog()

	under := cat.SubtreeEntries([]string{"A", "B"})
	require.Len(t, under, 2)
	assert.Equal(t, "B", under[0].Name)
	assert.Equal(t, "deep.zip", under[1].Name)

	all := cat.SubtreeEntries(nil)
	assert.Len(t, all, cat.Len())

	assert.Empty(t, cat.SubtreeEntries([]string{"nope"}))
}

func TestDropSubtree(t *testing.T) {
	cat := sampleCatalog()
	cat.DropSubtree([]string{"A"})

	assert.Equal(t, 1, cat.Len())
	_, ok := cat.Get("http://mirror.test/top.zip")
	assert.True(t, ok)
}

func TestEntryHelpers(t *testing.T) {
	e := entry(KindFile, "http://mirror.test/A/Game.ZIP", "A", "Game.ZIP")
	assert.Equal(t, "A/Game.ZIP", e.RelPath())
	assert.Equal(t, "zip", e.Ext())
	assert.Equal(t, 1, e.Depth())
	assert.False(t, e.IsDir())

	d := entry(KindDirectory, "http://mirror.test/A/", "A")
	assert.Equal(t, "", d.Ext())
	assert.Equal(t, 0, d.Depth())
	assert.True(t, d.IsDir())
}
