package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubExtractor struct {
	links  []string
	next   []string
	images []string
}

func (s stubExtractor) Metadata([]byte, string) map[string]string {
	return map[string]string{"title": "stub"}
}
func (s stubExtractor) Text([]byte) string { return "stub text" }
func (s stubExtractor) StructuredData([]byte, string) map[string][]map[string]any {
	return map[string][]map[string]any{"json-ld": {}}
}
func (s stubExtractor) Links([]byte, string) []string           { return s.links }
func (s stubExtractor) PaginationLinks([]byte, string) []string { return s.next }
func (s stubExtractor) ImageSources([]byte, string) []string    { return s.images }

type memStore struct {
	mu        sync.Mutex
	records   []PageRecord
	binaries  map[string][]byte
	appendErr error
}

func (s *memStore) SaveDocument(_ context.Context, pageURL string, _ []byte) (string, error) {
	return "pages/" + pageURL, nil
}

func (s *memStore) SaveBinary(_ context.Context, srcURL string, data []byte, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.binaries == nil {
		s.binaries = make(map[string][]byte)
	}
	s.binaries[name] = data
	return "assets/images/" + name, nil
}

func (s *memStore) AppendRecord(_ context.Context, rec PageRecord) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

type failingIndex struct{ calls int }

func (f *failingIndex) InsertPage(context.Context, PageRecord) error {
	f.calls++
	return errors.New("db unavailable")
}
func (f *failingIndex) Close() {}

func TestProcessorBuildsRecordAndEnqueuesLinks(t *testing.T) {
	store := &memStore{}
	frontier := NewFrontier(16)
	proc := NewProcessor(ProcessorConfig{
		CrawlID:        "c1",
		AllowedDomains: []string{"a.com"},
	}, stubExtractor{
		links: []string{"/one", "http://evil.com/x", "mailto:x@a.com"},
		next:  []string{"/page2"},
	}, store, frontier, nil, nil, zaptest.NewLogger(t))

	task := Task{URL: "http://a.com/", Depth: 1}
	require.NoError(t, proc.Process(context.Background(), task, Page{Body: []byte("<html></html>"), Rendered: true}))

	require.Len(t, store.records, 1)
	rec := store.records[0]
	assert.Equal(t, "c1", rec.CrawlID)
	assert.Equal(t, "http://a.com/", rec.URL)
	assert.True(t, rec.Rendered)
	assert.Equal(t, "stub", rec.Metadata["title"])
	assert.NotEmpty(t, rec.ContentHash)
	assert.False(t, rec.FetchedAt.IsZero())

	// Only same-domain fetchable links enter the frontier, one depth deeper.
	assert.Equal(t, 2, frontier.Len())
	seen := map[string]int{}
	for i := 0; i < 2; i++ {
		task, ok := frontier.Dequeue(context.Background(), time.Second)
		require.True(t, ok)
		assert.Equal(t, 2, task.Depth)
		seen[task.URL]++
	}
	assert.Equal(t, 1, seen["http://a.com/one"])
	assert.Equal(t, 1, seen["http://a.com/page2"])
}

func TestProcessorAppendFailureIsFatal(t *testing.T) {
	store := &memStore{appendErr: errors.New("disk full")}
	proc := NewProcessor(ProcessorConfig{CrawlID: "c1"}, stubExtractor{}, store, NewFrontier(4), nil, nil, zaptest.NewLogger(t))

	err := proc.Process(context.Background(), Task{URL: "http://a.com/"}, Page{Body: []byte("x")})
	assert.Error(t, err)
}

func TestProcessorIndexFailureIsNotFatal(t *testing.T) {
	store := &memStore{}
	idx := &failingIndex{}
	proc := NewProcessor(ProcessorConfig{CrawlID: "c1"}, stubExtractor{}, store, NewFrontier(4), idx, nil, zaptest.NewLogger(t))

	require.NoError(t, proc.Process(context.Background(), Task{URL: "http://a.com/"}, Page{Body: []byte("x")}))
	assert.Equal(t, 1, idx.calls)
	assert.Len(t, store.records, 1)
}

func TestProcessorDownloadsImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.png" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	t.Cleanup(srv.Close)

	store := &memStore{}
	proc := NewProcessor(ProcessorConfig{
		CrawlID:        "c1",
		DownloadImages: true,
		UserAgent:      "siteharvest-test",
	}, stubExtractor{
		images: []string{srv.URL + "/hero.png", srv.URL + "/broken.png"},
	}, store, NewFrontier(4), nil, nil, zaptest.NewLogger(t))

	require.NoError(t, proc.Process(context.Background(), Task{URL: "http://a.com/"}, Page{Body: []byte("x")}))

	require.Len(t, store.records, 1)
	images := store.records[0].Images
	require.Len(t, images, 2, "every source is listed, failed downloads included")
	assert.Equal(t, srv.URL+"/hero.png", images[0].Source)
	assert.NotEmpty(t, images[0].SavedPath)
	assert.Empty(t, images[1].SavedPath, "failed download keeps an empty saved path")
	assert.Contains(t, store.binaries, "hero.png")
}

func TestProcessorSkipsImagesWhenDisabled(t *testing.T) {
	store := &memStore{}
	proc := NewProcessor(ProcessorConfig{CrawlID: "c1"}, stubExtractor{
		images: []string{"http://a.com/hero.png"},
	}, store, NewFrontier(4), nil, nil, zaptest.NewLogger(t))

	require.NoError(t, proc.Process(context.Background(), Task{URL: "http://a.com/"}, Page{Body: []byte("x")}))
	assert.Empty(t, store.records[0].Images)
}
