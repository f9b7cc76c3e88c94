package service

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FilePart is one uploaded file.
type FilePart struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Materializer writes uploaded files under <root>/<home>/downloads.
type Materializer interface {
	// Materialize returns the home directory the pipeline runs in.
	Materialize(ctx context.Context, home string, pdfs, excels []FilePart) (string, error)
}

type fsMaterializer struct {
	root   string
	logger *zap.Logger
}

// NewMaterializer concurrent uploads for the same home write into the same
// directory without locking; same-named files from different requests interleave.
func NewMaterializer(root string, logger *zap.Logger) Materializer {
	return &fsMaterializer{root: root, logger: logger}
}

// HomeDir is the per-home processing directory.
func HomeDir(root, home string) string {
	return filepath.Join(root, home)
}

// DownloadsDir receives the uploaded files of a home.
func DownloadsDir(root, home string) string {
	return filepath.Join(root, home, "downloads")
}

func (m *fsMaterializer) Materialize(ctx context.Context, home string, pdfs, excels []FilePart) (string, error) {
	dir := DownloadsDir(m.root, home)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", newError(KindIO, err, "failed to create %s", dir)
	}
	m.logger.Info("Saving uploaded files",
		zap.String("home", home),
		zap.String("dir", dir),
		zap.Int("pdfs", len(pdfs)),
		zap.Int("excels", len(excels)),
	)

	for _, group := range [][]FilePart{pdfs, excels} {
		for _, part := range group {
			if err := ctx.Err(); err != nil {
				return "", newError(KindIO, err, "upload cancelled")
			}
			if err := writePart(dir, part); err != nil {
				return "", err
			}
			m.logger.Debug("Saved file", zap.String("home", home), zap.String("file", part.Name))
		}
	}
	return HomeDir(m.root, home), nil
}

// writePart stores the part under its base name, replacing any existing file.
func writePart(dir string, part FilePart) error {
	name := filepath.Base(part.Name)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return newError(KindIO, nil, "invalid file name %q", part.Name)
	}

	src, err := part.Open()
	if err != nil {
		return newError(KindIO, err, "failed to read upload %s", name)
	}
	defer src.Close()

	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return newError(KindIO, err, "failed to create %s", path)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return newError(KindIO, err, "failed to write %s", path)
	}
	if err := dst.Close(); err != nil {
		return newError(KindIO, err, "failed to write %s", path)
	}
	return nil
}
