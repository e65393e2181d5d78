// Package blobstore keeps uploaded part images on the local filesystem.
//
// All access goes through an os.Root opened on the upload directory, so a
// reference can never reach a file outside it, symlinks included. References
// have the form "uploads/<uuid>_u<owner>_<sanitized name>" and stay valid for
// the life of the blob.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RefPrefix is prepended to every stored name.
const RefPrefix = "uploads/"

const maxNameLen = 128

var (
	ErrNotFound     = errors.New("blob not found")
	ErrOutsideRoot  = errors.New("blob reference escapes the upload root")
	ErrEmptyPayload = errors.New("blob payload is empty")

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// StoreError wraps every I/O failure of the store.
type StoreError struct {
	Op  string
	Ref string
	Err error
}

func (e *StoreError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("blobstore %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("blobstore %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Ref     string
	Size    int64
	ModTime time.Time
}

// Store is a flat directory of immutable blobs.
type Store struct {
	dir   string
	root  *os.Root
	newID func() string
}

// New opens (and creates when missing) the upload directory.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &StoreError{Op: "init", Err: err}
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, &StoreError{Op: "init", Err: err}
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, &StoreError{Op: "init", Err: err}
	}
	return &Store{
		dir:   abs,
		root:  root,
		newID: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}, nil
}

// Dir returns the absolute upload directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) Close() error { return s.root.Close() }

// Store writes data for ownerID under a fresh unique name derived from
// suggestedName.
func (s *Store) Store(ctx context.Context, ownerID uint, data []byte, suggestedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &StoreError{Op: "store", Err: err}
	}
	if len(data) == 0 {
		return "", &StoreError{Op: "store", Err: ErrEmptyPayload}
	}

	name := fmt.Sprintf("%s_u%d_%s", s.newID(), ownerID, SanitizeName(suggestedName))
	ref := RefPrefix + name

	f, err := s.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", &StoreError{Op: "store", Ref: ref, Err: err}
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.root.Remove(name)
		return "", &StoreError{Op: "store", Ref: ref, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = s.root.Remove(name)
		return "", &StoreError{Op: "store", Ref: ref, Err: err}
	}
	return ref, nil
}

// Open returns a reader for ref; the caller closes it.
func (s *Store) Open(ref string) (*os.File, error) {
	name, err := resolve(ref)
	if err != nil {
		return nil, &StoreError{Op: "open", Ref: ref, Err: err}
	}
	f, err := s.root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, &StoreError{Op: "open", Ref: ref, Err: err}
	}
	return f, nil
}

// Read returns the full contents of ref.
func (s *Store) Read(ref string) ([]byte, error) {
	f, err := s.Open(ref)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &StoreError{Op: "read", Ref: ref, Err: err}
	}
	return data, nil
}

// Exists reports whether ref names a stored blob.
func (s *Store) Exists(ref string) (bool, error) {
	name, err := resolve(ref)
	if err != nil {
		return false, &StoreError{Op: "stat", Ref: ref, Err: err}
	}
	info, err := s.root.Stat(name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &StoreError{Op: "stat", Ref: ref, Err: err}
	}
	return info.Mode().IsRegular(), nil
}

// Delete removes ref. A missing blob is not an error.
func (s *Store) Delete(ref string) error {
	name, err := resolve(ref)
	if err != nil {
		return &StoreError{Op: "delete", Ref: ref, Err: err}
	}
	if err := s.root.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StoreError{Op: "delete", Ref: ref, Err: err}
	}
	return nil
}

// List returns every regular file in the store.
func (s *Store) List() ([]BlobInfo, error) {
	entries, err := fs.ReadDir(s.root.FS(), ".")
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	out := make([]BlobInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// verdwenen tussen ReadDir en Info
			continue
		}
		out = append(out, BlobInfo{Ref: RefPrefix + e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return out, nil
}

// IsValidRef reports whether ref is well formed and stays inside the root.
func IsValidRef(ref string) bool {
	_, err := resolve(ref)
	return err == nil
}

// CanonicalRef returns ref in its stored "uploads/<name>" form.
func CanonicalRef(ref string) (string, error) {
	name, err := resolve(ref)
	if err != nil {
		return "", err
	}
	return RefPrefix + name, nil
}

// OwnerOf returns the user a blob was stored for. Names without an owner
// segment belong to nobody.
func OwnerOf(ref string) (uint, bool) {
	name, err := resolve(ref)
	if err != nil {
		return 0, false
	}
	parts := strings.SplitN(name, "_", 3)
	if len(parts) != 3 || !strings.HasPrefix(parts[1], "u") {
		return 0, false
	}
	id, err := strconv.ParseUint(parts[1][1:], 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// OwnedBy reports whether ref was stored for ownerID.
func OwnedBy(ref string, ownerID uint) bool {
	id, ok := OwnerOf(ref)
	return ok && id == ownerID
}

// resolve maps a reference onto a file name directly under the root. The
// "uploads/" prefix is stripped before cleaning so "uploads/../x" cannot
// collapse into a bare name; unprefixed references must already be bare.
func resolve(ref string) (string, error) {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, `\`, "/"))
	if ref == "" || strings.HasPrefix(ref, "/") {
		return "", ErrOutsideRoot
	}
	name, prefixed := strings.CutPrefix(ref, RefPrefix)
	if !prefixed && strings.Contains(name, "/") {
		return "", ErrOutsideRoot
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.Contains(clean, "/") || !filepath.IsLocal(clean) {
		return "", ErrOutsideRoot
	}
	return clean, nil
}

// SanitizeName reduces a client supplied file name to a safe base name.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if len(name) > maxNameLen {
		ext := path.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = name[:maxNameLen-len(ext)] + ext
	}
	if name == "" {
		return "image"
	}
	return name
}
