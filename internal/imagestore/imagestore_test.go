package imagestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalUploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	local, err := NewLocal(dir, "/uploads")
	require.NoError(t, err)
	ctx := context.Background()

	uploaded, err := local.Upload(ctx, []byte("fake-png"), "produk.png", "products")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uploaded.ImageID, "img"))
	require.True(t, strings.HasPrefix(uploaded.URL, "/uploads/products/"))
	require.True(t, strings.HasSuffix(uploaded.Name, ".png"))

	onDisk := filepath.Join(dir, "products", uploaded.Name)
	data, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	require.Equal(t, []byte("fake-png"), data)

	require.NoError(t, local.Delete(ctx, uploaded.ImageID))
	_, err = os.Stat(onDisk)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.ErrorIs(t, local.Delete(ctx, uploaded.ImageID), os.ErrNotExist)
}

func TestLocalUploadWithoutFolder(t *testing.T) {
	dir := t.TempDir()
	local, err := NewLocal(dir, "/uploads/")
	require.NoError(t, err)

	uploaded, err := local.Upload(context.Background(), []byte("x"), "foto.jpeg", "")
	require.NoError(t, err)
	require.Equal(t, "/uploads/"+uploaded.Name, uploaded.URL)

	_, err = os.Stat(filepath.Join(dir, uploaded.Name))
	require.NoError(t, err)
}

func TestLocalUploadRejectsBadInput(t *testing.T) {
	local, err := NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = local.Upload(ctx, nil, "kosong.png", "")
	require.Error(t, err)

	_, err = local.Upload(ctx, []byte("x"), "script.exe", "")
	require.Error(t, err)

	_, err = local.Upload(ctx, []byte("x"), "tanpa-ekstensi", "")
	require.Error(t, err)
}

func TestLocalFolderCannotEscapeBaseDir(t *testing.T) {
	dir := t.TempDir()
	local, err := NewLocal(dir, "/uploads")
	require.NoError(t, err)

	uploaded, err := local.Upload(context.Background(), []byte("x"), "foto.png", "../../etc")
	require.NoError(t, err)

	// The sanitized folder stays below the base directory.
	matches, err := filepath.Glob(filepath.Join(dir, "*", uploaded.Name))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	escaped, err := filepath.Glob(filepath.Join(dir, "..", "etc", uploaded.Name))
	require.NoError(t, err)
	require.Empty(t, escaped)
}

func TestNoopAcceptsEverything(t *testing.T) {
	uploaded, err := Noop{}.Upload(context.Background(), nil, "apa.png", "folder")
	require.NoError(t, err)
	require.NotEmpty(t, uploaded.ImageID)
	require.NoError(t, Noop{}.Delete(context.Background(), uploaded.ImageID))
}
