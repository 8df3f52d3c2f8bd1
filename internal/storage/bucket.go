// Package storage keeps uploaded files in a local directory served as a
// public bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrInvalidName = errors.New("storage: invalid object name")

// Bucket stores objects as files under Dir and links to them under
// PublicPrefix.
type Bucket struct {
	Dir          string
	PublicPrefix string
}

func NewBucket(dir, publicPrefix string) (*Bucket, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create bucket dir: %w", err)
	}
	return &Bucket{Dir: dir, PublicPrefix: strings.TrimRight(publicPrefix, "/")}, nil
}

// Put writes r to name and returns the object's public URL. The object
// becomes visible only once fully written.
func (b *Bucket) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(b.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("storage: chmod %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(b.Dir, name)); err != nil {
		return "", fmt.Errorf("storage: publish %s: %w", name, err)
	}

	return b.URL(name), nil
}

// Delete removes name. Missing objects are not an error.
func (b *Bucket) Delete(ctx context.Context, name string) error {
	if name == "" || name != filepath.Base(name) {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(b.Dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}

func (b *Bucket) URL(name string) string {
	return path.Join(b.PublicPrefix, name)
}

// NameFromURL returns the object name of a URL produced by this bucket.
func (b *Bucket) NameFromURL(u string) (string, bool) {
	prefix := b.PublicPrefix + "/"
	if !strings.HasPrefix(u, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(u, prefix)
	if name == "" || name != filepath.Base(name) {
		return "", false
	}
	return name, true
}
