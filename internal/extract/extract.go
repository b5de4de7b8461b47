// Package extract implements the pure extraction collaborators applied to a
// fetched document: metadata, visible text, JSON-LD structured data, outbound
// links, pagination hints, and image sources.
package extract

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLExtractor implements the crawler Extractor interface with goquery.
type HTMLExtractor struct{}

// New returns an HTMLExtractor.
func New() *HTMLExtractor { return &HTMLExtractor{} }

func parse(doc []byte) (*goquery.Document, bool) {
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, false
	}
	return d, true
}

// baseFor returns the resolution base for the document: an in-document
// <base href> when present, else the page address.
func baseFor(d *goquery.Document, pageURL string) *url.URL {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = &url.URL{}
	}
	if href, ok := d.Find("base[href]").First().Attr("href"); ok {
		if resolved, err := base.Parse(strings.TrimSpace(href)); err == nil {
			return resolved
		}
	}
	return base
}

func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	u, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// Metadata extracts title, description/keywords, OpenGraph basics, and the
// canonical link.
func (HTMLExtractor) Metadata(doc []byte, pageURL string) map[string]string {
	meta := make(map[string]string)
	d, ok := parse(doc)
	if !ok {
		return meta
	}

	if title := strings.TrimSpace(d.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}
	named := map[string]string{
		"description": "meta_description",
		"keywords":    "meta_keywords",
	}
	d.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		key, wanted := named[strings.ToLower(name)]
		if !wanted {
			return
		}
		if content, ok := s.Attr("content"); ok && strings.TrimSpace(content) != "" {
			meta[key] = strings.TrimSpace(content)
		}
	})
	og := map[string]string{
		"og:title":       "og_title",
		"og:description": "og_description",
		"og:type":        "og_type",
		"og:url":         "og_url",
	}
	d.Find("meta[property]").Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		key, wanted := og[strings.ToLower(prop)]
		if !wanted {
			return
		}
		if content, ok := s.Attr("content"); ok && strings.TrimSpace(content) != "" {
			meta[key] = strings.TrimSpace(content)
		}
	})
	if href, ok := d.Find(`link[rel~="canonical"]`).First().Attr("href"); ok {
		if href = strings.TrimSpace(href); href != "" {
			meta["canonical"] = href
		}
	}
	return meta
}

// Text returns the document's visible text with scripts and styles removed
// and whitespace collapsed, one line per text block.
func (HTMLExtractor) Text(doc []byte) string {
	d, ok := parse(doc)
	if !ok {
		return ""
	}
	d.Find("script, style, noscript").Remove()

	var lines []string
	for _, raw := range strings.Split(d.Text(), "\n") {
		line := strings.Join(strings.Fields(raw), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// StructuredData extracts JSON-LD payloads. Malformed script bodies are
// skipped; the rest of the page's extraction is kept.
func (HTMLExtractor) StructuredData(doc []byte, _ string) map[string][]map[string]any {
	out := map[string][]map[string]any{"json-ld": {}}
	d, ok := parse(doc)
	if !ok {
		return out
	}
	d.Find("script[type]").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !strings.Contains(strings.ToLower(typ), "ld+json") {
			return
		}
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var single map[string]any
		if err := json.Unmarshal([]byte(raw), &single); err == nil {
			out["json-ld"] = append(out["json-ld"], single)
			return
		}
		var many []map[string]any
		if err := json.Unmarshal([]byte(raw), &many); err == nil {
			out["json-ld"] = append(out["json-ld"], many...)
		}
	})
	return out
}

// Links returns every anchor href resolved to an absolute address.
func (HTMLExtractor) Links(doc []byte, pageURL string) []string {
	d, ok := parse(doc)
	if !ok {
		return nil
	}
	base := baseFor(d, pageURL)
	var links []string
	d.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if abs, ok := resolve(base, href); ok {
			links = append(links, abs)
		}
	})
	return links
}

// PaginationLinks returns likely next-page addresses: <link rel=next>, plus
// anchors whose rel, aria-label, or text hint at forward pagination.
func (HTMLExtractor) PaginationLinks(doc []byte, pageURL string) []string {
	d, ok := parse(doc)
	if !ok {
		return nil
	}
	base := baseFor(d, pageURL)
	var out []string
	seen := make(map[string]struct{})
	add := func(href string) {
		abs, ok := resolve(base, href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}

	d.Find(`link[rel~="next"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href)
		}
	})
	d.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		aria, _ := s.Attr("aria-label")
		text := strings.ToLower(strings.Join(strings.Fields(s.Text()), " "))
		if len(text) > 100 {
			text = text[:100]
		}
		hinted := strings.Contains(strings.ToLower(rel), "next") ||
			strings.Contains(strings.ToLower(aria), "next") ||
			strings.Contains(text, "next") ||
			strings.Contains(text, "older") ||
			strings.Contains(text, "more")
		if !hinted {
			return
		}
		if href, ok := s.Attr("href"); ok {
			add(href)
		}
	})
	return out
}

// imageSourceAttrs are checked in order; the first present wins. The data-*
// variants cover common lazy-loading libraries.
var imageSourceAttrs = []string{"src", "data-src", "data-original", "data-lazy-src"}

// ImageSources returns the document's image addresses, deduplicated in order.
func (HTMLExtractor) ImageSources(doc []byte, pageURL string) []string {
	d, ok := parse(doc)
	if !ok {
		return nil
	}
	base := baseFor(d, pageURL)
	var out []string
	seen := make(map[string]struct{})
	d.Find("img").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range imageSourceAttrs {
			val, ok := s.Attr(attr)
			if !ok || strings.TrimSpace(val) == "" {
				continue
			}
			if abs, ok := resolve(base, val); ok {
				if _, dup := seen[abs]; !dup {
					seen[abs] = struct{}{}
					out = append(out, abs)
				}
			}
			break
		}
	})
	return out
}
