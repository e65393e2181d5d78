package blobstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*blobstore.Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "static", "uploads")
	s, err := blobstore.New(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func TestStore_CreatesDirectory(t *testing.T) {
	_, dir := newStore(t)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStore_StoreReadDelete(t *testing.T) {
	s, dir := newStore(t)
	data := []byte("\x89PNG\r\n\x1a\nfake")

	ref, err := s.Store(context.Background(), 4, data, "photo.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, blobstore.RefPrefix))
	assert.True(t, strings.HasSuffix(ref, "_photo.png"))

	got, err := s.Read(ref)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = os.Stat(filepath.Join(dir, strings.TrimPrefix(ref, blobstore.RefPrefix)))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ref))
	_, err = s.Read(ref)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	// idempotent
	require.NoError(t, s.Delete(ref))
}

func TestStore_SameNameNeverCollides(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	a, err := s.Store(ctx, 1, []byte("a"), "part.jpg")
	require.NoError(t, err)
	b, err := s.Store(ctx, 1, []byte("b"), "part.jpg")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	gotA, err := s.Read(a)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), gotA)
}

func TestStore_RejectsEscapingReferences(t *testing.T) {
	s, dir := newStore(t)
	outside := filepath.Join(filepath.Dir(dir), "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o600))

	for _, ref := range []string{
		"../keep.txt",
		"uploads/../../keep.txt",
		"/etc/passwd",
		`..\keep.txt`,
		"uploads/nested/file.png",
		"",
	} {
		err := s.Delete(ref)
		var storeErr *blobstore.StoreError
		require.ErrorAs(t, err, &storeErr, ref)
		assert.ErrorIs(t, err, blobstore.ErrOutsideRoot, ref)
		assert.False(t, blobstore.IsValidRef(ref), ref)
	}

	_, err := os.Stat(outside)
	assert.NoError(t, err, "file outside the root must survive")
}

func TestCanonicalRef(t *testing.T) {
	got, err := blobstore.CanonicalRef("abc_photo.png")
	require.NoError(t, err)
	assert.Equal(t, "uploads/abc_photo.png", got)

	got, err = blobstore.CanonicalRef(" uploads/./abc_photo.png ")
	require.NoError(t, err)
	assert.Equal(t, "uploads/abc_photo.png", got)

	for _, ref := range []string{
		"uploads/../x.png",
		"uploads/./../x.png",
		"uploads/..",
		"uploads/",
		"nested/../x.png",
		"./x.png",
	} {
		_, err = blobstore.CanonicalRef(ref)
		assert.ErrorIs(t, err, blobstore.ErrOutsideRoot, ref)
	}
}

func TestStore_DotDotNextToRootIsNotReachable(t *testing.T) {
	s, dir := newStore(t)
	sibling := filepath.Join(dir, "..", "x.png")
	require.NoError(t, os.WriteFile(sibling, []byte("keep"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.png"), []byte("inside"), 0o600))

	ok, err := s.Exists("uploads/../x.png")
	assert.False(t, ok)
	assert.ErrorIs(t, err, blobstore.ErrOutsideRoot)
	assert.ErrorIs(t, s.Delete("uploads/../x.png"), blobstore.ErrOutsideRoot)

	_, err = os.Stat(filepath.Join(dir, "x.png"))
	assert.NoError(t, err)
	_, err = os.Stat(sibling)
	assert.NoError(t, err)
}

func TestOwnerOf(t *testing.T) {
	s, _ := newStore(t)
	ref, err := s.Store(context.Background(), 42, []byte("img"), "shot_u7_x.png")
	require.NoError(t, err)

	id, ok := blobstore.OwnerOf(ref)
	require.True(t, ok)
	assert.Equal(t, uint(42), id)
	assert.True(t, blobstore.OwnedBy(ref, 42))
	assert.True(t, blobstore.OwnedBy(ref[len(blobstore.RefPrefix):], 42))
	assert.False(t, blobstore.OwnedBy(ref, 7))

	for _, ref := range []string{
		"uploads/abc_photo.png",
		"uploads/abc_u0_photo.png",
		"uploads/abc_uX_photo.png",
		"uploads/../abc_u42_photo.png",
	} {
		_, ok := blobstore.OwnerOf(ref)
		assert.False(t, ok, ref)
	}
}

func TestStore_EmptyPayload(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Store(context.Background(), 1, nil, "x.png")
	assert.True(t, errors.Is(err, blobstore.ErrEmptyPayload))
}

func TestStore_ExistsAndList(t *testing.T) {
	s, _ := newStore(t)
	ref, err := s.Store(context.Background(), 1, []byte("img"), "a.png")
	require.NoError(t, err)

	ok, err := s.Exists(ref)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(blobstore.RefPrefix + "missing.png")
	require.NoError(t, err)
	assert.False(t, ok)

	blobs, err := s.List()
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, ref, blobs[0].Ref)
	assert.Equal(t, int64(3), blobs[0].Size)
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"photo.png":              "photo.png",
		"../../etc/passwd":       "passwd",
		`C:\Users\op\shot 1.JPG`: "shot_1.JPG",
		"..":                     "image",
		"":                       "image",
		".hidden.jpeg":           "hidden.jpeg",
		"we!rd$name?.jpg":        "we_rd_name_.jpg",
	}
	for in, want := range tests {
		assert.Equal(t, want, blobstore.SanitizeName(in), in)
	}

	long := strings.Repeat("a", 300) + ".png"
	got := blobstore.SanitizeName(long)
	assert.LessOrEqual(t, len(got), 128)
	assert.True(t, strings.HasSuffix(got, ".png"))
}
