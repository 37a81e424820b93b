package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ferrule/hoard/internal/catalog"
)

// maxListingBytes caps how much of a directory page is read. Listing pages
// on even the largest mirrors stay well under this; anything bigger is not
// a listing.
const maxListingBytes = 32 << 20

// Fetcher performs single GET requests for directory pages. It never
// retries and never parses; that policy lives with its callers.
type Fetcher struct {
	client HTTPDoer
}

func NewFetcher(client HTTPDoer) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch issues one GET for the given URL and returns the status code and
// body. Transport failures (including the redirect cap) come back as
// *catalog.NetworkError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, catalog.ErrTooManyRedirects) {
			err = catalog.ErrTooManyRedirects
		}
		return 0, nil, &catalog.NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return resp.StatusCode, nil, &catalog.NetworkError{URL: url, Err: err}
	}
	log.Debug().Str("op", "client/fetcher").Int("status", resp.StatusCode).Int("bytes", len(body)).Msg(url)
	return resp.StatusCode, body, nil
}
