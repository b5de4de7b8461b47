package crawler

import "context"

// Fetcher performs a single plain HTTP retrieval.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Renderer obtains a page through a full browser-rendering pass. It is shared
// across the crawl and must be closed when the crawl ends.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
	Close(ctx context.Context) error
}

// Detector judges whether a raw retrieval is likely client-rendered and
// therefore needs the heavier rendering pass.
type Detector interface {
	NeedsRender(page Page) bool
}

// RobotsPolicy answers whether an address may be fetched politely.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Extractor bundles the pure extraction collaborators applied to a final
// document. All methods take the document bytes and the page address.
type Extractor interface {
	Metadata(doc []byte, pageURL string) map[string]string
	Text(doc []byte) string
	StructuredData(doc []byte, pageURL string) map[string][]map[string]any
	Links(doc []byte, pageURL string) []string
	PaginationLinks(doc []byte, pageURL string) []string
	ImageSources(doc []byte, pageURL string) []string
}

// Store persists documents, binary assets, and the append-only record log.
type Store interface {
	SaveDocument(ctx context.Context, pageURL string, body []byte) (string, error)
	SaveBinary(ctx context.Context, srcURL string, data []byte, suggestedName string) (string, error)
	AppendRecord(ctx context.Context, rec PageRecord) error
}

// RecordIndex mirrors one row per PageRecord into a queryable index.
type RecordIndex interface {
	InsertPage(ctx context.Context, rec PageRecord) error
	Close()
}

// Publisher pushes page-processed events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
