package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxUploadBytes caps a single proof upload.
	MaxUploadBytes = 10 << 20
)

var (
	// ErrTooLarge signals the upload exceeds MaxUploadBytes.
	ErrTooLarge = errors.New("storage: file exceeds size limit")
	// ErrUnsupportedType signals a content type outside images and PDF.
	ErrUnsupportedType = errors.New("storage: unsupported content type")
)

// Store persists uploaded proof files and returns a URL the API can serve.
type Store interface {
	Save(ctx context.Context, originalName, contentType string, size int64, r io.Reader) (string, error)
}

// allowedType accepts any image subtype plus PDF.
func allowedType(contentType string) bool {
	if strings.HasPrefix(contentType, "image/") {
		return true
	}
	return contentType == "application/pdf"
}

// DiskStore writes uploads to a local directory and addresses them under a
// base URL. Filenames are random, so an uploader cannot guess or overwrite
// another file.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates the upload directory if needed.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save streams the upload to disk after validating type and size. The size
// from the multipart header is advisory; the copy itself is capped too.
func (s *DiskStore) Save(ctx context.Context, originalName, contentType string, size int64, r io.Reader) (string, error) {
	if !allowedType(contentType) {
		return "", ErrUnsupportedType
	}
	if size > MaxUploadBytes {
		return "", ErrTooLarge
	}

	name := uuid.NewString() + sanitizeExt(originalName)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: create file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if n > MaxUploadBytes {
		os.Remove(path)
		return "", ErrTooLarge
	}

	return s.baseURL + "/" + name, nil
}

// sanitizeExt keeps only a short, plain extension from the original name.
func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
