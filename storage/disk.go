// Package storage keeps attachment bytes on local disk and hands back
// public URLs.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

type DiskStore struct {
	dir     string
	baseURL string
	log     *slog.Logger
}

func NewDiskStore(dir, baseURL string, log *slog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: baseURL, log: log}, nil
}

// Store writes the bytes under a collision-free name and returns the public
// URL clients embed in image messages. The extension comes from the sniffed
// content type, never from the client.
func (s *DiskStore) Store(data []byte) (string, error) {
	mtype := mimetype.Detect(data)
	name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), mtype.Extension())

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing attachment: %w", err)
	}

	s.log.Debug("Attachment stored", "name", name, "bytes", len(data), "mime", mtype.String())
	return s.baseURL + "/uploads/" + name, nil
}

// Dir exposes the backing directory for static file serving.
func (s *DiskStore) Dir() string { return s.dir }
