package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the user-editable crawl and tagging configuration. A missing
// file is not an error; defaults are written out on first use so the user
// has something to edit.
type Config struct {
	// Folders skipped entirely during a crawl, matched case-insensitively
	// against any path segment.
	IgnoredFolders []string `yaml:"ignored_folders"`
	// Alias -> canonical platform name, matched case-insensitively as a
	// substring of the cleaned platform string.
	PlatformAliases map[string]string `yaml:"platform_aliases"`
	// Vocabularies for tag extraction from parenthesized filename segments.
	Regions   []string          `yaml:"regions"`
	Languages map[string]string `yaml:"languages"`
	Versions  []string          `yaml:"versions"`
}

func Default() *Config {
	return &Config{
		IgnoredFolders: []string{
			"audio cd",
			"bd-video",
			"dvd-video",
			"video cd",
			"firmware",
			"demos",
			"docs",
			"applications",
			"operating systems",
			"educational",
			"coverdiscs",
			"diskmags",
			"books",
			"bios",
			"documents",
			"source code",
			"promo",
			"cheats",
		},
		PlatformAliases: map[string]string{
			"apple 1":                                  "Apple I",
			"apple i":                                  "Apple I",
			"apple ii":                                 "Apple II",
			"snk neo geo":                              "SNK Neo Geo",
			"snk neo-geo":                              "SNK Neo Geo",
			"snk neogeo pocket":                        "SNK Neo Geo Pocket",
			"nintendo famicom & entertainment system":  "Nintendo Entertainment System",
			"nintendo super nintendo entertainment system": "Super Nintendo Entertainment System",
			"nintendo famicom disk system":             "Nintendo Famicom Disk System",
			"ibm pc compatible":                        "IBM PC Compatible",
			"ibm pc and compatibles":                   "IBM PC Compatible",
			"nec pc-engine & turbografx-16":            "NEC PC Engine & TurboGrafx-16",
		},
		Regions: []string{
			"us", "eu", "jp", "pal", "europe", "usa", "japan", "ntsc", "china", "korea", "world",
		},
		Languages: map[string]string{
			"en": "EN", "english": "EN",
			"fr": "FR", "french": "FR",
			"de": "DE", "german": "DE",
			"es": "ES", "spanish": "ES",
			"it": "IT", "italian": "IT",
			"jp": "JP", "japanese": "JP",
		},
		Versions: []string{"decrypted", "encrypted", "nkit", "rvz", "nkit rvz"},
	}
}

// Load reads the config at path, writing defaults there first if nothing
// exists yet. An empty path just returns defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if werr := cfg.Write(path); werr != nil {
			return nil, werr
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
