package download

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/ferrule/hoard/internal/catalog"
)

// CleanPartials removes files under destDir that are shorter than their
// cataloged size, leftovers of interrupted jobs the user has decided not
// to resume. Files the catalog knows nothing about, and entries without a
// size hint, are left alone. Returns the paths removed.
func CleanPartials(cat *catalog.Catalog, destDir string) ([]string, error) {
	var removed []string
	for _, entry := range cat.Files() {
		if entry.Size < 0 {
			continue
		}
		dest := filepath.Join(destDir, filepath.FromSlash(entry.RelPath()))
		fi, err := os.Stat(dest)
		if err != nil {
			continue
		}
		if fi.Size() >= entry.Size {
			continue
		}
		if err := os.Remove(dest); err != nil {
			return removed, err
		}
		log.Info().Str("op", "download/clean").Msgf("Removed partial %s (%d of %d bytes)", dest, fi.Size(), entry.Size)
		removed = append(removed, dest)
	}
	return removed, nil
}
