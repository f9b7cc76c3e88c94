package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func stringPart(name, body string) FilePart {
	return FilePart{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}

func TestMaterialize_WritesFilesUnderDownloads(t *testing.T) {
	root := t.TempDir()
	m := NewMaterializer(root, zap.NewNop())

	dir, err := m.Materialize(context.Background(), "oneill",
		[]FilePart{stringPart("report.pdf", "pdf-bytes")},
		[]FilePart{stringPart("behaviours.xlsx", "xlsx-bytes")},
	)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "oneill"), dir)

	b, err := os.ReadFile(filepath.Join(root, "oneill", "downloads", "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(b))
	b, err = os.ReadFile(filepath.Join(root, "oneill", "downloads", "behaviours.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "xlsx-bytes", string(b))
}

func TestMaterialize_OverwritesAndStripsDirectories(t *testing.T) {
	root := t.TempDir()
	m := NewMaterializer(root, zap.NewNop())
	ctx := context.Background()

	_, err := m.Materialize(ctx, "banwell", []FilePart{stringPart("a.pdf", "old contents")}, nil)
	require.NoError(t, err)
	_, err = m.Materialize(ctx, "banwell", []FilePart{stringPart("../../a.pdf", "new")}, nil)
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(DownloadsDir(root, "banwell"), "a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(b))
	_, err = os.Stat(filepath.Join(root, "a.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestMaterialize_NoFilesStillCreatesDirectory(t *testing.T) {
	root := t.TempDir()
	m := NewMaterializer(root, zap.NewNop())

	_, err := m.Materialize(context.Background(), "berkshire", nil, nil)
	require.NoError(t, err)

	info, err := os.Stat(DownloadsDir(root, "berkshire"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMaterialize_FailuresAreIOErrors(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "oneill")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))
	m := NewMaterializer(root, zap.NewNop())

	_, err := m.Materialize(context.Background(), "oneill", nil, nil)
	require.Error(t, err)
	assert.Equal(t, KindIO, KindOf(err))

	broken := FilePart{Name: "x.pdf", Open: func() (io.ReadCloser, error) { return nil, errors.New("multipart gone") }}
	_, err = m.Materialize(context.Background(), "banwell", []FilePart{broken}, nil)
	require.Error(t, err)
	assert.Equal(t, KindIO, KindOf(err))
}
