package listing

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ferrule/hoard/internal/catalog"
)

// RawLink is one anchor pulled out of a directory page, with whatever size
// and date hints the page carried alongside it.
type RawLink struct {
	URL          string // absolute, resolved against the page URL
	Name         string
	IsDir        bool
	Size         int64 // -1 when the page gave no hint
	LastModified time.Time
}

// Parse extracts the file and directory links from one directory-listing
// page. Malformed fragments are skipped, never fatal; the only parse error
// is a non-empty page with no anchors at all, which means the server
// returned something other than a listing (an error page, usually).
//
// Hrefs resolve against baseURL. Links that leave the site's origin are
// dropped, as are self and parent links.
func Parse(baseURL string, body []byte) ([]RawLink, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		// html.Parse recovers from almost anything; hitting this means the
		// body was not even tokenizable.
		return nil, catalog.ErrMalformedListing
	}

	var links []RawLink
	anchors := 0

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if link, ok := anchorToLink(n, base); ok {
				anchors++
				if link.URL != "" {
					links = append(links, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if anchors == 0 && len(bytes.TrimSpace(body)) > 0 {
		return nil, catalog.ErrMalformedListing
	}
	return links, nil
}

// anchorToLink converts one <a> node. The bool reports whether the anchor
// counted as listing evidence; a returned link with an empty URL was
// evidence but not a usable entry (parent links, sort headers).
func anchorToLink(n *html.Node, base *url.URL) (RawLink, bool) {
	href := ""
	for _, a := range n.Attr {
		if a.Key == "href" {
			href = a.Val
			break
		}
	}
	if href == "" {
		return RawLink{}, false
	}
	if href == "../" || href == "./" || href == "." || href == ".." {
		return RawLink{}, true
	}
	// Sort toggles and in-page fragments on autoindex headers.
	if strings.HasPrefix(href, "?") || strings.HasPrefix(href, "#") {
		return RawLink{}, true
	}

	rel, err := url.Parse(href)
	if err != nil {
		return RawLink{}, true
	}
	abs := base.ResolveReference(rel)
	abs.Fragment = ""
	abs.RawQuery = ""
	if abs.Scheme != base.Scheme || abs.Host != base.Host {
		// Mislabeled external link; a listing only points inward.
		return RawLink{}, true
	}

	name := strings.TrimSpace(nodeText(n))
	if name == "" {
		name = href
	}
	isDir := strings.HasSuffix(href, "/") || strings.HasSuffix(name, "/")
	name = strings.TrimSuffix(name, "/")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	if name == "" {
		return RawLink{}, true
	}

	link := RawLink{
		URL:   abs.String(),
		Name:  name,
		IsDir: isDir,
		Size:  -1,
	}
	link.Size, link.LastModified = rowHints(n)
	return link, true
}

// rowHints looks for size and date cells in the same table row as the
// anchor. Covers the table-shaped autoindex variants (lighttpd, the
// Myrient skin); pre-formatted listings simply yield no hints.
func rowHints(anchor *html.Node) (int64, time.Time) {
	size := int64(-1)
	var mtime time.Time

	cell := anchor.Parent
	if cell == nil || cell.Type != html.ElementNode || cell.Data != "td" {
		return size, mtime
	}
	for sib := cell.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.ElementNode || sib.Data != "td" {
			continue
		}
		text := strings.TrimSpace(nodeText(sib))
		if text == "" || text == "-" {
			continue
		}
		if s, ok := parseSizeHint(text); ok && size < 0 {
			size = s
			continue
		}
		if t, ok := parseTimeHint(text); ok && mtime.IsZero() {
			mtime = t
		}
	}
	return size, mtime
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return b.String()
}

var sizeUnits = map[string]int64{
	"b":   1,
	"kb":  1 << 10,
	"kib": 1 << 10,
	"mb":  1 << 20,
	"mib": 1 << 20,
	"gb":  1 << 30,
	"gib": 1 << 30,
	"tb":  1 << 40,
	"tib": 1 << 40,
}

func parseSizeHint(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	if n, err := strconv.ParseInt(text, 10, 64); err == nil && n >= 0 {
		return n, true
	}
	fields := strings.Fields(text)
	var numPart, unitPart string
	switch len(fields) {
	case 2:
		numPart, unitPart = fields[0], fields[1]
	case 1:
		// Glued form like "4.2MiB".
		i := strings.IndexFunc(fields[0], func(r rune) bool {
			return (r < '0' || r > '9') && r != '.'
		})
		if i <= 0 {
			return 0, false
		}
		numPart, unitPart = fields[0][:i], fields[0][i:]
	default:
		return 0, false
	}
	mult, ok := sizeUnits[strings.ToLower(unitPart)]
	if !ok {
		return 0, false
	}
	val, err := strconv.ParseFloat(numPart, 64)
	if err != nil || val < 0 {
		return 0, false
	}
	return int64(val * float64(mult)), true
}

var timeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"02-Jan-2006 15:04",
	"2-Jan-2006 15:04",
	time.RFC1123,
}

func parseTimeHint(text string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
