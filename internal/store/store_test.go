package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrule/hoard/internal/catalog"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "hoard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadWithoutSave(t *testing.T) {
	s := openTempStore(t)
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTempStore(t)

	cat := catalog.New("http://mirror.test/")
	cat.Version = 3
	mtime := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	cat.Entries["http://mirror.test/A/"] = catalog.Entry{
		Path: []string{"A"}, Name: "A", Kind: catalog.KindDirectory,
		URL: "http://mirror.test/A/", Size: -1,
	}
	cat.Entries["http://mirror.test/A/x.zip"] = catalog.Entry{
		Path: []string{"A", "x.zip"}, Name: "x.zip", Kind: catalog.KindFile,
		URL: "http://mirror.test/A/x.zip", Size: 1234, LastModified: mtime,
	}
	cat.FetchedAt["http://mirror.test/"] = time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	cat.Failed = append(cat.Failed, catalog.SubtreeError{
		URL: "http://mirror.test/B/", Err: errors.New("unexpected status 500"),
	})

	require.NoError(t, s.Save(cat))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, cat.RootURL, got.RootURL)
	assert.Equal(t, cat.Version, got.Version)
	assert.Equal(t, cat.Len(), got.Len())

	file, ok := got.Get("http://mirror.test/A/x.zip")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "x.zip"}, file.Path)
	assert.Equal(t, catalog.KindFile, file.Kind)
	assert.Equal(t, int64(1234), file.Size)
	assert.Equal(t, mtime, file.LastModified)

	dir, ok := got.Get("http://mirror.test/A/")
	require.True(t, ok)
	assert.True(t, dir.IsDir())
	assert.True(t, dir.LastModified.IsZero())

	assert.Equal(t, cat.FetchedAt["http://mirror.test/"], got.FetchedAt["http://mirror.test/"])
	require.Len(t, got.Failed, 1)
	assert.Equal(t, "http://mirror.test/B/", got.Failed[0].URL)
	assert.Equal(t, "unexpected status 500", got.Failed[0].Err.Error())
}

func TestSaveReplacesPreviousCatalog(t *testing.T) {
	s := openTempStore(t)

	first := catalog.New("http://mirror.test/")
	first.Entries["http://mirror.test/old.zip"] = catalog.Entry{
		Path: []string{"old.zip"}, Name: "old.zip", Kind: catalog.KindFile,
		URL: "http://mirror.test/old.zip", Size: 1,
	}
	require.NoError(t, s.Save(first))

	second := first.Clone()
	delete(second.Entries, "http://mirror.test/old.zip")
	second.Entries["http://mirror.test/new.zip"] = catalog.Entry{
		Path: []string{"new.zip"}, Name: "new.zip", Kind: catalog.KindFile,
		URL: "http://mirror.test/new.zip", Size: 2,
	}
	require.NoError(t, s.Save(second))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, second.Version, got.Version)
	_, ok := got.Get("http://mirror.test/old.zip")
	assert.False(t, ok, "saving replaces the stored catalog wholesale")
	_, ok = got.Get("http://mirror.test/new.zip")
	assert.True(t, ok)
}
