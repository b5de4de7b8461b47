// Package storage persists crawl output on the local filesystem: saved
// documents under pages/, binary assets under assets/images/, and an
// append-only JSONL record log. Saved documents can additionally be mirrored
// to a remote blob store.
package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"siteharvest/internal/crawler"
)

// BlobStore mirrors saved artifacts to remote storage and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Manager implements the crawler Store interface on a local directory tree.
type Manager struct {
	baseDir    string
	pagesDir   string
	imagesDir  string
	recordPath string

	recordMu sync.Mutex

	mirror BlobStore // optional
	logger *zap.Logger
}

// NewManager creates the output directory layout. mirror may be nil.
func NewManager(baseDir string, mirror BlobStore, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		baseDir:    baseDir,
		pagesDir:   filepath.Join(baseDir, "pages"),
		imagesDir:  filepath.Join(baseDir, "assets", "images"),
		recordPath: filepath.Join(baseDir, "data.jsonl"),
		mirror:     mirror,
		logger:     logger,
	}
	for _, dir := range []string{m.pagesDir, m.imagesDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	return m, nil
}

// SaveDocument writes the document body under pages/ keyed by the address
// hash and returns the local path. Mirroring failures are logged, not fatal.
func (m *Manager) SaveDocument(ctx context.Context, pageURL string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("save document: %w", err)
	}
	name := sha1Hex([]byte(pageURL)) + ".html"
	target := filepath.Join(m.pagesDir, name)
	if err := os.WriteFile(target, body, 0o600); err != nil {
		return "", fmt.Errorf("write document %s: %w", target, err)
	}
	if m.mirror != nil {
		if uri, err := m.mirror.PutObject(ctx, "pages/"+name, "text/html; charset=utf-8", body); err != nil {
			m.logger.Warn("mirror document failed", zap.String("url", pageURL), zap.Error(err))
		} else {
			m.logger.Debug("document mirrored", zap.String("uri", uri))
		}
	}
	return target, nil
}

// SaveBinary writes an asset under assets/images/ using the suggested name,
// falling back to the content hash, and returns the local path.
func (m *Manager) SaveBinary(ctx context.Context, srcURL string, data []byte, suggestedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("save binary: %w", err)
	}
	name := suggestedName
	if name == "" {
		name = sha1Hex(data)
	}
	target := filepath.Join(m.imagesDir, name)
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return "", fmt.Errorf("write binary %s: %w", target, err)
	}
	return target, nil
}

// AppendRecord appends one JSON object per line to the record log. The log is
// append-only; records are never rewritten.
func (m *Manager) AppendRecord(ctx context.Context, rec crawler.PageRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	payload = append(payload, '\n')

	m.recordMu.Lock()
	defer m.recordMu.Unlock()
	f, err := os.OpenFile(m.recordPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open record log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			m.logger.Debug("close record log", zap.Error(cerr))
		}
	}()
	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
