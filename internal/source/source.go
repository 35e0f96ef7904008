// Package source reads project files as UTF-8, computes content checksums,
// and discovers candidate files under a project root.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/logger"
)

var (
	ErrTooLarge = errors.New("file exceeds size limit")

	log = logger.ForComponent("source")
)

type File struct {
	// Path is project-relative and slash separated.
	Path     string
	AbsPath  string
	Content  []byte
	Encoding string
	Checksum string
}

func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Read loads root/rel, decodes it to UTF-8 and checksums the raw bytes so
// that any byte-level change invalidates cached results.
func Read(root, rel string, maxSize int64) (*File, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrTooLarge, rel, info.Size())
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	detected := DetectEncoding(data)
	return &File{
		Path:     filepath.ToSlash(rel),
		AbsPath:  abs,
		Content:  NormalizeToUTF8(data, detected),
		Encoding: detected.Encoding,
		Checksum: Checksum(data),
	}, nil
}

type DiscoverOptions struct {
	Include    []string
	Exclude    []string
	Extensions map[string]bool
}

// Discover walks root and returns project-relative paths that match at least
// one include glob (all files when none are given), match no exclude glob,
// and carry a supported extension. Results are sorted.
func Discover(ctx context.Context, root string, opts DiscoverOptions) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Debug("walk error", "path", path, "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if Matches(opts.Exclude, rel) || Matches(opts.Exclude, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if len(opts.Extensions) > 0 && !opts.Extensions[filepath.Ext(rel)] {
			return nil
		}
		if len(opts.Include) > 0 && !Matches(opts.Include, rel) {
			return nil
		}
		if Matches(opts.Exclude, rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// Matches reports whether path matches any doublestar pattern.
func Matches(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if match, _ := doublestar.Match(pattern, path); match {
			return true
		}
	}
	return false
}
