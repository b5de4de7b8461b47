package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCollyFetcherFetch(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	t.Cleanup(srv.Close)

	f, err := NewCollyFetcher("siteharvest-test/1.0", 5*time.Second, 2, zaptest.NewLogger(t))
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, 200, page.StatusCode)
	assert.Equal(t, "<html><body>hello</body></html>", string(page.Body))
	assert.Contains(t, page.Headers.Get("Content-Type"), "text/html")
	assert.Equal(t, "siteharvest-test/1.0", gotAgent)
}

func TestCollyFetcherNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	f, err := NewCollyFetcher("siteharvest-test/1.0", 5*time.Second, 2, zaptest.NewLogger(t))
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
}

func TestCollyFetcherConnectionRefused(t *testing.T) {
	f, err := NewCollyFetcher("siteharvest-test/1.0", time.Second, 2, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "http://127.0.0.1:1/")
	assert.Error(t, err)
}

func TestCollyFetcherFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>moved</html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f, err := NewCollyFetcher("siteharvest-test/1.0", 5*time.Second, 2, zaptest.NewLogger(t))
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, 200, page.StatusCode)
	assert.Equal(t, srv.URL+"/new", page.FinalURL)
	assert.Equal(t, srv.URL+"/old", page.URL)
}
