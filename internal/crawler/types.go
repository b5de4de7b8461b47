package crawler

import (
	"fmt"
	"net/http"
	"time"
)

// Task is one unit of frontier work: an address plus the depth it was
// discovered at. Immutable once created, consumed exactly once by a worker.
type Task struct {
	URL   string
	Depth int
}

// Page is the outcome of a single retrieval (plain HTTP or rendered).
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Rendered   bool
}

// ContentDisposition returns the response Content-Disposition header, if any.
func (p Page) ContentDisposition() string {
	if p.Headers == nil {
		return ""
	}
	return p.Headers.Get("Content-Disposition")
}

// RenderPolicy selects when the rendering collaborator is invoked.
type RenderPolicy string

// Render policy values accepted in configuration.
const (
	RenderAuto   RenderPolicy = "auto"
	RenderAlways RenderPolicy = "always"
	RenderNever  RenderPolicy = "never"
)

// ParseRenderPolicy validates a configured render policy string.
func ParseRenderPolicy(raw string) (RenderPolicy, error) {
	switch RenderPolicy(raw) {
	case RenderAuto, RenderAlways, RenderNever:
		return RenderPolicy(raw), nil
	case "":
		return RenderAuto, nil
	default:
		return "", fmt.Errorf("invalid render policy %q (want auto, always, or never)", raw)
	}
}

// ImageSave records one image source and where its bytes were persisted.
// SavedPath is empty when the download soft-failed.
type ImageSave struct {
	Source    string `json:"src"`
	SavedPath string `json:"saved_path,omitempty"`
}

// PageRecord is the persisted output unit for one successfully processed page.
// Produced once, immutable afterwards.
type PageRecord struct {
	CrawlID         string                      `json:"crawl_id"`
	URL             string                      `json:"url"`
	FetchedAt       time.Time                   `json:"fetched_at"`
	DocumentPath    string                      `json:"html_path"`
	ContentHash     string                      `json:"content_hash"`
	Rendered        bool                        `json:"rendered"`
	Metadata        map[string]string           `json:"metadata"`
	StructuredData  map[string][]map[string]any `json:"structured_data"`
	Text            string                      `json:"text"`
	Links           []string                    `json:"links"`
	PaginationLinks []string                    `json:"pagination_next_links"`
	Images          []ImageSave                 `json:"images"`
}

// Progress is a point-in-time snapshot of crawl counters.
type Progress struct {
	CrawlID        string `json:"crawl_id"`
	PagesProcessed int64  `json:"pages_processed"`
	Enqueued       int64  `json:"enqueued"`
	Visited        int64  `json:"visited"`
	FrontierLen    int    `json:"frontier_len"`
	Dropped        int64  `json:"dropped"`
}
