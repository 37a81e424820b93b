package search

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/ferrule/hoard/internal/catalog"
	"github.com/ferrule/hoard/internal/config"
)

// Tag categories produced by the default extractor.
const (
	TagPlatform   = "platform"
	TagCollection = "collection"
	TagRegion     = "region"
	TagLanguage   = "language"
	TagVersion    = "version"
)

// TagExtractor derives tag key/value pairs from a file entry. The naming
// conventions of listing sites vary and are not fixed at compile time, so
// extraction is pluggable; the default implements the common ROM-archive
// convention of parenthesized segments in the filename.
type TagExtractor interface {
	Extract(e catalog.Entry) map[string]string
}

var (
	parenRe    = regexp.MustCompile(`\(([^)]+)\)`)
	stripMeta  = regexp.MustCompile(`\s*\([^)]*\)|\s*\[[^\]]*\]`)
	langListRe = regexp.MustCompile(`^[a-z]{2}(,[a-z]{2})*$`)
)

// DefaultExtractor reads region, language and version tags out of the
// parenthesized segments of a file name, and platform/collection out of
// the leading path segments, normalized through the configured alias map.
type DefaultExtractor struct {
	regions     map[string]bool
	languages   map[string]string
	versions    map[string]bool
	versionList []string // longest first, so "nkit rvz" wins over "nkit"
	aliases     map[string]string
	aliasKeys   []string // longest first, so "apple ii" wins over "apple i"
	ignored     []string
}

func NewDefaultExtractor(cfg *config.Config) *DefaultExtractor {
	ex := &DefaultExtractor{
		regions:   make(map[string]bool),
		languages: make(map[string]string),
		versions:  make(map[string]bool),
		aliases:   make(map[string]string),
	}
	for _, r := range cfg.Regions {
		ex.regions[strings.ToLower(r)] = true
	}
	for k, v := range cfg.Languages {
		ex.languages[strings.ToLower(k)] = v
	}
	for _, v := range cfg.Versions {
		ex.versions[strings.ToLower(v)] = true
		ex.versionList = append(ex.versionList, strings.ToLower(v))
	}
	sortLongestFirst(ex.versionList)
	for k, v := range cfg.PlatformAliases {
		key := strings.ToLower(k)
		ex.aliases[key] = v
		ex.aliasKeys = append(ex.aliasKeys, key)
	}
	sortLongestFirst(ex.aliasKeys)
	for _, ig := range cfg.IgnoredFolders {
		ex.ignored = append(ex.ignored, strings.ToLower(ig))
	}
	return ex
}

func (ex *DefaultExtractor) Extract(e catalog.Entry) map[string]string {
	tags := make(map[string]string)
	if len(e.Path) > 1 {
		tags[TagCollection] = e.Path[0]
	}
	if platform := ex.platformFor(e.Path); platform != "" {
		tags[TagPlatform] = platform
	}

	segments := parenRe.FindAllStringSubmatch(baseTitle(e.Name), -1)

	var langs []string
	seen := make(map[string]bool)
	for _, m := range segments {
		seg := strings.TrimSpace(m[1])
		lower := strings.ToLower(seg)
		switch {
		case ex.regions[lower]:
			if _, ok := tags[TagRegion]; !ok {
				tags[TagRegion] = strings.ToUpper(seg)
			}
		case ex.versions[lower]:
			if _, ok := tags[TagVersion]; !ok {
				tags[TagVersion] = titleCase(lower)
			}
		default:
			compact := strings.ReplaceAll(lower, " ", "")
			if langListRe.MatchString(compact) {
				for _, l := range strings.Split(compact, ",") {
					code := strings.ToUpper(l)
					if !seen[code] {
						seen[code] = true
						langs = append(langs, code)
					}
				}
			} else if code, ok := ex.languages[compact]; ok && !seen[code] {
				seen[code] = true
				langs = append(langs, code)
			}
		}
	}
	if len(langs) > 0 {
		tags[TagLanguage] = strings.Join(langs, ",")
	}
	if _, ok := tags[TagVersion]; !ok {
		if v := ex.versionFromPath(e.Path); v != "" {
			tags[TagVersion] = v
		}
	}
	return tags
}

// platformFor derives the platform from the second path segment, with
// overrides for collections that nest platforms differently.
func (ex *DefaultExtractor) platformFor(path []string) string {
	if len(path) < 3 {
		// Need collection/platform/.../file at minimum.
		return ""
	}
	joined := strings.ToLower(strings.Join(path, "/"))
	raw := path[1]
	switch {
	case strings.Contains(joined, "tosec") && strings.Contains(joined, "games") && len(path) > 3:
		raw = path[1] + " - " + path[2]
	case strings.Contains(joined, "retroachievements"):
		if _, after, found := strings.Cut(path[1], "-"); found {
			raw = strings.TrimSpace(after)
		}
	case strings.Contains(joined, "t-en] collection"):
		raw = strings.ReplaceAll(path[1], " [T-En] Collection", "")
		if before, after, found := strings.Cut(raw, "-"); found {
			raw = strings.TrimSpace(before) + " " + strings.TrimSpace(after)
		}
	}
	return ex.normalizePlatform(raw)
}

// normalizePlatform cleans a raw platform segment: parentheticals gone,
// " - " joins flattened, consecutive duplicate words collapsed, ignored
// words removed, then the alias table applied.
func (ex *DefaultExtractor) normalizePlatform(raw string) string {
	base, _, _ := strings.Cut(raw, "(")
	parts := strings.Split(base, " - ")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}

	var tokens []string
	prev := ""
	for _, word := range strings.Fields(strings.Join(parts, " ")) {
		lw := strings.ToLower(word)
		if lw != prev {
			tokens = append(tokens, word)
		}
		prev = lw
	}

	kept := tokens[:0]
	for _, tok := range tokens {
		if !containsFold(ex.ignored, tok) {
			kept = append(kept, tok)
		}
	}
	clean := strings.TrimSpace(strings.Join(kept, " "))

	lowerClean := strings.ToLower(clean)
	for _, alias := range ex.aliasKeys {
		if strings.Contains(lowerClean, alias) {
			return ex.aliases[alias]
		}
	}
	return titleCase(clean)
}

func (ex *DefaultExtractor) versionFromPath(path []string) string {
	for _, seg := range path[:max(len(path)-1, 0)] {
		lower := strings.ToLower(seg)
		for _, v := range ex.versionList {
			if strings.Contains(lower, v) {
				return titleCase(v)
			}
		}
	}
	return ""
}

func sortLongestFirst(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
}

func containsFold(haystack []string, word string) bool {
	lw := strings.ToLower(word)
	for _, h := range haystack {
		if h == lw {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func baseTitle(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// Title returns the entry's display title: the file name with extension
// and bracketed or parenthesized metadata stripped.
func Title(e catalog.Entry) string {
	return strings.TrimSpace(stripMeta.ReplaceAllString(baseTitle(e.Name), ""))
}
