package scanner

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/log2timeline/dfvfs-go/backend/archivefs"
	_ "github.com/log2timeline/dfvfs-go/backend/gzipfmt"
	_ "github.com/log2timeline/dfvfs-go/backend/osfs"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/resolver"
)

func writeTempFile(t *testing.T, data []byte) *pathspec.PathSpec {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "scanner-*")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	spec, err := pathspec.New(pathspec.OS, nil, map[string]any{pathspec.AttrLocation: f.Name()})
	require.NoError(t, err)
	return spec
}

func gzipOf(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestSourceScannerDescendsThroughGzipToUnrecognized(t *testing.T) {
	root := writeTempFile(t, gzipOf(t, []byte("plain bytes, no nested format here")))

	s := NewSourceScanner(resolver.New())
	tree, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	require.Equal(t, StatusContinuing, tree.Status)
	require.Len(t, tree.Children, 1)
	gzNode := tree.Children[0]
	assert.Equal(t, pathspec.GZIP, gzNode.Spec.Type())
	assert.Equal(t, StatusUnrecognized, gzNode.Status)
}

func minimalZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("hello.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestSourceScannerFindsZipInsideGzip(t *testing.T) {
	root := writeTempFile(t, gzipOf(t, minimalZip(t)))

	s := NewSourceScanner(resolver.New())
	tree, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	leaves := Leaves(tree)
	var zipLeaf *Node
	for _, l := range leaves {
		if l.Spec.Type() == pathspec.ZIP {
			zipLeaf = l
		}
	}
	require.NotNil(t, zipLeaf, "expected a ZIP node among the leaves")
	assert.Equal(t, StatusFileSystem, zipLeaf.Status)
}

func TestSourceScannerEmptyContainer(t *testing.T) {
	root := writeTempFile(t, nil)

	s := NewSourceScanner(resolver.New())
	tree, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, StatusEmptyContainer, tree.Status)
}

func TestSourceScannerMaxDepth(t *testing.T) {
	root := writeTempFile(t, gzipOf(t, []byte("irrelevant")))

	s := NewSourceScanner(resolver.New())
	s.MaxDepth = 1
	tree, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, StatusContinuing, tree.Status)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, StatusUnrecognized, tree.Children[0].Status, "depth limit must cut off exploration one level in")
}
