package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// imageFetchParallelism bounds concurrent image downloads per page. Image
// fetches run outside the governor: they are assets of an already-admitted
// page, not crawl traffic of their own.
const imageFetchParallelism = 8

// ProcessorConfig holds the per-crawl knobs the processor needs.
type ProcessorConfig struct {
	CrawlID        string
	AllowedDomains []string
	DownloadImages bool
	UserAgent      string
	RequestTimeout time.Duration
	PublishTopic   string
}

// Processor turns a final document into a PageRecord: it fans out to the
// extraction collaborators, persists the document and its images, appends the
// record, and feeds newly discovered links back into the frontier.
type Processor struct {
	cfg       ProcessorConfig
	extractor Extractor
	store     Store
	frontier  *Frontier
	index     RecordIndex // optional
	publisher Publisher   // optional
	images    *http.Client
	logger    *zap.Logger
}

// NewProcessor wires a Processor. index and publisher may be nil.
func NewProcessor(cfg ProcessorConfig, extractor Extractor, store Store, frontier *Frontier, index RecordIndex, publisher Publisher, logger *zap.Logger) *Processor {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Processor{
		cfg:       cfg,
		extractor: extractor,
		store:     store,
		frontier:  frontier,
		index:     index,
		publisher: publisher,
		images:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Process persists one page and enqueues its outbound links.
func (p *Processor) Process(ctx context.Context, task Task, page Page) error {
	body := page.Body
	metadata := p.extractor.Metadata(body, task.URL)
	text := p.extractor.Text(body)
	structured := p.extractor.StructuredData(body, task.URL)
	links := p.extractor.Links(body, task.URL)
	nextLinks := p.extractor.PaginationLinks(body, task.URL)

	docPath, err := p.store.SaveDocument(ctx, task.URL, body)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	var images []ImageSave
	if p.cfg.DownloadImages {
		images = p.saveImages(ctx, p.extractor.ImageSources(body, task.URL), page.ContentDisposition())
	}

	rec := PageRecord{
		CrawlID:         p.cfg.CrawlID,
		URL:             task.URL,
		FetchedAt:       time.Now().UTC(),
		DocumentPath:    docPath,
		ContentHash:     contentHash(body),
		Rendered:        page.Rendered,
		Metadata:        metadata,
		StructuredData:  structured,
		Text:            text,
		Links:           links,
		PaginationLinks: nextLinks,
		Images:          images,
	}
	if err := p.store.AppendRecord(ctx, rec); err != nil {
		return fmt.Errorf("append record: %w", err)
	}

	if p.index != nil {
		if err := p.index.InsertPage(ctx, rec); err != nil {
			p.logger.Error("index insert failed", zap.String("url", task.URL), zap.Error(err))
		}
	}
	if p.publisher != nil {
		payload := map[string]any{
			"crawl_id":     rec.CrawlID,
			"url":          rec.URL,
			"html_path":    rec.DocumentPath,
			"content_hash": rec.ContentHash,
		}
		if _, err := p.publisher.Publish(ctx, p.cfg.PublishTopic, payload); err != nil {
			p.logger.Error("publish failed", zap.String("url", task.URL), zap.Error(err))
		}
	}

	p.enqueueDiscovered(task, links, nextLinks)
	return nil
}

// enqueueDiscovered feeds outbound and pagination links back into the
// frontier at the discovering page's depth plus one. Normalization failures,
// already-seen addresses, and allowlist misses are discarded silently.
func (p *Processor) enqueueDiscovered(task Task, links, nextLinks []string) {
	depth := task.Depth + 1
	for _, href := range append(append([]string{}, links...), nextLinks...) {
		norm, ok := Normalize(task.URL, href)
		if !ok {
			continue
		}
		if !IsAllowedDomain(norm, p.cfg.AllowedDomains) {
			continue
		}
		p.frontier.Enqueue(Task{URL: norm, Depth: depth})
	}
}

func (p *Processor) saveImages(ctx context.Context, sources []string, pageDisposition string) []ImageSave {
	if len(sources) == 0 {
		return nil
	}
	saves := make([]ImageSave, len(sources))
	sem := make(chan struct{}, imageFetchParallelism)
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			saves[i] = ImageSave{Source: src, SavedPath: p.downloadImage(ctx, src, pageDisposition)}
		}(i, src)
	}
	wg.Wait()
	return saves
}

// downloadImage fetches one asset and persists it. Any failure yields an
// empty path; the page record still lists the source.
func (p *Processor) downloadImage(ctx context.Context, src, pageDisposition string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	resp, err := p.images.Do(req)
	if err != nil {
		p.logger.Debug("image fetch failed", zap.String("src", src), zap.Error(err))
		return ""
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			p.logger.Debug("close image body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil || len(data) == 0 {
		return ""
	}

	disposition := resp.Header.Get("Content-Disposition")
	if disposition == "" {
		disposition = pageDisposition
	}
	saved, err := p.store.SaveBinary(ctx, src, data, guessFilename(src, disposition))
	if err != nil {
		p.logger.Warn("image save failed", zap.String("src", src), zap.Error(err))
		return ""
	}
	imagesSaved.Inc()
	return saved
}
