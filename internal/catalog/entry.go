package catalog

import (
	"path"
	"strings"
	"time"
)

type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "dir"
	}
	return "file"
}

// Entry is one node discovered in the remote tree. Entries are immutable
// once built; identity within a catalog is the fully-resolved URL.
type Entry struct {
	Path         []string // segments from root to leaf, leaf included
	Name         string
	Kind         Kind
	URL          string
	Size         int64 // -1 when the listing gave no size
	LastModified time.Time
}

func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// RelPath joins the path segments into the catalog-relative path.
func (e Entry) RelPath() string {
	return strings.Join(e.Path, "/")
}

func (e Entry) Ext() string {
	if e.Kind == KindDirectory {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(e.Name), "."))
}

// Depth is the number of directories between the root and this entry.
func (e Entry) Depth() int {
	if len(e.Path) == 0 {
		return 0
	}
	return len(e.Path) - 1
}
