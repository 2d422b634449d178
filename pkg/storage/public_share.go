package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PublicShare copies finally-approved artifacts into the shared network
// directory and derives the URL clients use to reach them.
type PublicShare struct {
	dir     string
	urlBase string
}

// NewPublicShare ensures the share directory exists and returns a handle.
func NewPublicShare(dir, urlBase string) (*PublicShare, error) {
	if dir == "" {
		dir = "./public_share"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create public share directory: %w", err)
	}
	return &PublicShare{dir: dir, urlBase: strings.TrimRight(urlBase, "/\\")}, nil
}

// Publish copies the artifact at srcPath into the share under filename and
// returns the public URL for the copy.
func (p *PublicShare) Publish(srcPath, filename string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open source artifact: %w", err)
	}
	defer src.Close() //nolint:errcheck

	dstPath := filepath.Join(p.dir, filename)
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create public copy: %w", err)
	}
	defer dst.Close() //nolint:errcheck

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copy to public share: %w", err)
	}
	return p.URLFor(filename), nil
}

// Remove deletes a published copy if present.
func (p *PublicShare) Remove(filename string) error {
	if err := os.Remove(filepath.Join(p.dir, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove public copy: %w", err)
	}
	return nil
}

// URLFor derives the public URL for a published filename.
func (p *PublicShare) URLFor(filename string) string {
	if p.urlBase == "" {
		return filename
	}
	sep := "/"
	if strings.HasPrefix(p.urlBase, "\\\\") {
		sep = "\\"
	}
	return p.urlBase + sep + filename
}

// Dir exposes the share root, used by the background indexer walk.
func (p *PublicShare) Dir() string {
	return p.dir
}
