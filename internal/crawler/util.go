package crawler

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
)

var (
	dispositionFilename  = regexp.MustCompile(`filename\*?="?([^";]+)"?`)
	invalidFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

const maxFilenameLength = 140

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// guessFilename derives a safe filename for a downloaded asset from the
// Content-Disposition header when present, else from the URL path.
func guessFilename(rawURL, contentDisposition string) string {
	var name string
	if contentDisposition != "" {
		if m := dispositionFilename.FindStringSubmatch(contentDisposition); m != nil {
			name = m[1]
		}
	}
	if name == "" {
		if u, err := url.Parse(rawURL); err == nil {
			name = path.Base(u.Path)
		}
		if name == "" || name == "." || name == "/" {
			name = "index.html"
		}
	}
	return sanitizeFilename(name)
}

func sanitizeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "_")
	if len(name) > maxFilenameLength {
		name = name[:maxFilenameLength]
	}
	if name == "" {
		return "file"
	}
	return name
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
