package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScanFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScannerRegistersRecognizedMedia(t *testing.T) {
	root := t.TempDir()
	writeScanFile(t, filepath.Join(root, "a.mp4"))
	writeScanFile(t, filepath.Join(root, "sub", "b.wav"))
	writeScanFile(t, filepath.Join(root, "sub", "c.png"))
	writeScanFile(t, filepath.Join(root, "notes.txt"))
	writeScanFile(t, filepath.Join(root, ".hidden.mp4"))
	writeScanFile(t, filepath.Join(root, ".git", "d.mp4"))

	library := NewLibrary(nil, hclog.NewNullLogger())
	scanner := NewScanner(library, nil, 2, hclog.NewNullLogger())

	result, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Registered)
	assert.Zero(t, result.Failed)
	assert.Len(t, library.List(), 3)
}

func TestScannerIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeScanFile(t, filepath.Join(root, "a.mp4"))

	library := NewLibrary(nil, hclog.NewNullLogger())
	scanner := NewScanner(library, nil, 2, hclog.NewNullLogger())

	_, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	result, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Registered)
	assert.Len(t, library.List(), 1)
}

func TestScannerMissingRoot(t *testing.T) {
	library := NewLibrary(nil, hclog.NewNullLogger())
	scanner := NewScanner(library, nil, 2, hclog.NewNullLogger())

	_, err := scanner.Scan(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
