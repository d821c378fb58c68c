package imagestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gudangpos/backend/internal/domain"
	"gudangpos/backend/internal/xid"
)

// Store persists uploaded product images and serves back public URLs.
type Store interface {
	Upload(ctx context.Context, data []byte, name string, folder string) (domain.UploadedImage, error)
	Delete(ctx context.Context, imageID string) error
}

// Local writes images under a base directory and maps them to URLs below
// a base URL, e.g. /uploads/products/img-<uuid>.jpg.
type Local struct {
	baseDir string
	baseURL string
}

func NewLocal(baseDir string, baseURL string) (*Local, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("imagestore: base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("imagestore: %w", err)
	}
	return &Local{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (l *Local) Upload(_ context.Context, data []byte, name string, folder string) (domain.UploadedImage, error) {
	if len(data) == 0 {
		return domain.UploadedImage{}, fmt.Errorf("imagestore: empty payload")
	}

	folder = sanitizeSegment(folder)
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
	default:
		return domain.UploadedImage{}, fmt.Errorf("imagestore: unsupported file type %q", ext)
	}

	imageID := xid.New("img")
	fileName := imageID + ext
	dir := l.baseDir
	if folder != "" {
		dir = filepath.Join(dir, folder)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return domain.UploadedImage{}, fmt.Errorf("imagestore: %w", err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, fileName), data, 0o644); err != nil {
		return domain.UploadedImage{}, fmt.Errorf("imagestore: %w", err)
	}

	url := l.baseURL + "/" + fileName
	if folder != "" {
		url = l.baseURL + "/" + folder + "/" + fileName
	}
	return domain.UploadedImage{
		ImageID:      imageID,
		Name:         fileName,
		URL:          url,
		ThumbnailURL: url,
	}, nil
}

func (l *Local) Delete(_ context.Context, imageID string) error {
	imageID = sanitizeSegment(imageID)
	if imageID == "" {
		return fmt.Errorf("imagestore: image id is required")
	}

	matches, err := filepath.Glob(filepath.Join(l.baseDir, "*", imageID+".*"))
	if err != nil {
		return err
	}
	rootMatches, err := filepath.Glob(filepath.Join(l.baseDir, imageID+".*"))
	if err != nil {
		return err
	}
	matches = append(matches, rootMatches...)
	if len(matches) == 0 {
		return os.ErrNotExist
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// sanitizeSegment strips path separators so user input cannot escape the
// base directory.
func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "..", "")
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "\\", "")
	return s
}

// Noop discards uploads. Used in tests and when no upload directory is
// configured.
type Noop struct{}

func (Noop) Upload(_ context.Context, _ []byte, name string, _ string) (domain.UploadedImage, error) {
	imageID := xid.New("img")
	return domain.UploadedImage{
		ImageID:      imageID,
		Name:         imageID + strings.ToLower(filepath.Ext(name)),
		URL:          "about:blank",
		ThumbnailURL: "about:blank",
	}, nil
}

func (Noop) Delete(_ context.Context, _ string) error {
	return nil
}
