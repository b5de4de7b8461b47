package crawler

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Default thresholds for judging a page client-rendered: little visible text
// combined with many script tags, or a known single-page-app root marker.
const (
	defaultMinTextBytes = 400
	defaultMinScripts   = 5
)

var defaultSPAMarkers = []string{
	`id="__next"`,
	"data-reactroot",
	"ng-version",
	`id="app"`,
	`id="root"`,
}

// HeuristicDetector implements Detector using simple HTML signals.
type HeuristicDetector struct {
	minTextBytes int
	minScripts   int
	markers      []string
}

// NewHeuristicDetector returns a Detector with the default thresholds.
func NewHeuristicDetector() *HeuristicDetector {
	return &HeuristicDetector{
		minTextBytes: defaultMinTextBytes,
		minScripts:   defaultMinScripts,
		markers:      defaultSPAMarkers,
	}
}

// NeedsRender reports whether the raw retrieval looks client-rendered.
func (d *HeuristicDetector) NeedsRender(page Page) bool {
	if len(page.Body) == 0 {
		return true
	}
	for _, marker := range d.markers {
		if bytes.Contains(page.Body, []byte(marker)) {
			return true
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return true
	}
	scripts := doc.Find("script").Length()
	doc.Find("script, style, noscript").Remove()
	text := strings.Join(strings.Fields(doc.Text()), "")
	return len(text) < d.minTextBytes && scripts >= d.minScripts
}
