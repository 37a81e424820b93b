package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTooManyRedirects     = errors.New("too many redirects")
	ErrMalformedListing     = errors.New("page is not a directory listing")
	ErrInvalidTarget        = errors.New("directory entries cannot be downloaded")
	ErrDuplicateDestination = errors.New("destination path already claimed by another job")
)

// NetworkError marks a transport-level failure. It is the transient class:
// the download manager retries these, the indexer records them against the
// subtree that failed.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RootUnreachableError is fatal to a catalog build: nothing below the root
// can be discovered if the root itself will not fetch or parse.
type RootUnreachableError struct {
	URL string
	Err error
}

func (e *RootUnreachableError) Error() string {
	return fmt.Sprintf("root %s unreachable: %v", e.URL, e.Err)
}

func (e *RootUnreachableError) Unwrap() error {
	return e.Err
}

// SubtreeError records a directory that could not be fetched or parsed
// during a build. Sibling subtrees are unaffected.
type SubtreeError struct {
	URL string
	Err error
}

func (e SubtreeError) Error() string {
	return fmt.Sprintf("subtree %s: %v", e.URL, e.Err)
}

// PartialCatalogError reports a build that completed with some subtrees
// missing. The catalog it accompanies is still usable.
type PartialCatalogError struct {
	Failed []SubtreeError
}

func (e *PartialCatalogError) Error() string {
	urls := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		urls[i] = f.URL
	}
	return fmt.Sprintf("catalog incomplete, %d subtree(s) failed: %s", len(e.Failed), strings.Join(urls, ", "))
}
