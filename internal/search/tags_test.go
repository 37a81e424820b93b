package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ferrule/hoard/internal/catalog"
	"github.com/ferrule/hoard/internal/config"
)

func fileAt(path ...string) catalog.Entry {
	return catalog.Entry{
		Path: path,
		Name: path[len(path)-1],
		Kind: catalog.KindFile,
	}
}

func TestExtractFilenameTags(t *testing.T) {
	ex := NewDefaultExtractor(config.Default())

	tags := ex.Extract(fileAt("No-Intro", "Nintendo - Game Boy", "Tetris (USA) (En,Fr).zip"))
	assert.Equal(t, "No-Intro", tags[TagCollection])
	assert.Equal(t, "Nintendo Game Boy", tags[TagPlatform])
	assert.Equal(t, "USA", tags[TagRegion])
	assert.Equal(t, "EN,FR", tags[TagLanguage])
	assert.NotContains(t, tags, TagVersion)
}

func TestExtractLanguageNames(t *testing.T) {
	ex := NewDefaultExtractor(config.Default())

	tags := ex.Extract(fileAt("No-Intro", "Sega - Mega Drive", "Sonic (Europe) (English).md"))
	assert.Equal(t, "EUROPE", tags[TagRegion])
	assert.Equal(t, "EN", tags[TagLanguage], "full language names map to their codes")
}

func TestExtractVersionTag(t *testing.T) {
	ex := NewDefaultExtractor(config.Default())

	tags := ex.Extract(fileAt("No-Intro", "Nintendo - 3DS", "Game (USA) (Decrypted).3ds"))
	assert.Equal(t, "Decrypted", tags[TagVersion])

	// Version can also live in a directory segment.
	tags = ex.Extract(fileAt("Redump", "Nintendo - Wii (NKit RVZ)", "Game (USA).rvz"))
	assert.Equal(t, "Nkit Rvz", tags[TagVersion])
}

func TestExtractPlatformAlias(t *testing.T) {
	ex := NewDefaultExtractor(config.Default())

	tags := ex.Extract(fileAt("No-Intro", "Apple - Apple II", "Game.dsk"))
	assert.Equal(t, "Apple II", tags[TagPlatform], "duplicate words collapse and the alias table applies")
}

func TestExtractShallowEntryHasNoPlatform(t *testing.T) {
	ex := NewDefaultExtractor(config.Default())

	tags := ex.Extract(fileAt("readme.txt"))
	assert.NotContains(t, tags, TagPlatform)
	assert.NotContains(t, tags, TagCollection)
}

func TestTitle(t *testing.T) {
	e := fileAt("No-Intro", "Nintendo - Game Boy", "Tetris (USA) (En,Fr) [b].zip")
	assert.Equal(t, "Tetris", Title(e))

	plain := fileAt("notes.txt")
	assert.Equal(t, "notes", Title(plain))
}
