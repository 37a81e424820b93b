package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrule/hoard/internal/catalog"
)

func newTestFetcher() *Fetcher {
	return NewFetcher(NewHTTPClient(HTTPClientConfig{}))
}

func TestFetchPassesThroughStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "<html>listing</html>")
	}))
	defer srv.Close()

	f := newTestFetcher()
	status, body, err := f.Fetch(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<html>listing</html>", string(body))

	// A 404 is a result, not a transport failure.
	status, _, err = f.Fetch(context.Background(), srv.URL+"/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestFetchWrapsTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, _, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/")
	require.Error(t, err)
	var netErr *catalog.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestFetchRedirectLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/again", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	_, _, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrTooManyRedirects))
	var netErr *catalog.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestFetchHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "never seen")
	}))
	defer srv.Close()

	_, _, err := newTestFetcher().Fetch(ctx, srv.URL+"/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
