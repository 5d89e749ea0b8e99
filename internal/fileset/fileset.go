// Package fileset selects files below a root with gitignore-style patterns.
//
// Patterns are slash-separated and relative to the root. They support `*`, `?`,
// `**` and a leading `!` that excludes whatever earlier patterns matched:
//
//	set, _ := fileset.New("images/**/*", "!images/src/**")
//	files, _ := set.Walk("src")
package fileset

import (
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/moby/patternmatcher"
	"golang.org/x/text/unicode/norm"
)

// Set is an immutable, compiled pattern list.
type Set struct {
	patterns []string
	pm       *patternmatcher.PatternMatcher
}

// New compiles patterns.
func New(patterns ...string) (*Set, error) {
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, err
	}
	return &Set{patterns: slices.Clone(patterns), pm: pm}, nil
}

// MustNew is New for patterns known at compile time.
func MustNew(patterns ...string) *Set {
	s, err := New(patterns...)
	if err != nil {
		panic(err)
	}
	return s
}

// Patterns returns a copy of the source patterns.
func (s *Set) Patterns() []string { return slices.Clone(s.patterns) }

// Match reports whether the relative path rel is selected.
func (s *Set) Match(rel string) bool {
	rel = Normalize(rel)
	if rel == "" || rel == "." {
		return false
	}
	ok, err := s.pm.MatchesOrParentMatches(filepath.FromSlash(rel))
	return err == nil && ok
}

// Walk returns the sorted, slash-separated relative paths of the regular files
// below root that the set selects. Directories named in skipDirs are not descended.
// A missing root yields no files.
func (s *Set) Walk(root string, skipDirs ...string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if path != root && slices.Contains(skipDirs, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if s.Match(rel) {
			files = append(files, Normalize(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// Normalize converts rel to slash form in Unicode NFC, so paths reported by
// filesystems that store decomposed names compare equal to configured ones.
func Normalize(rel string) string {
	rel = filepath.ToSlash(filepath.Clean(rel))
	rel = strings.TrimPrefix(rel, "./")
	return norm.NFC.String(rel)
}
