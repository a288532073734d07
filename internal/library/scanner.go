// This file contains the main logic for scanning an image directory.
// It walks the directory tree, splits the image files into runs of
// consecutive seeds and attaches the metadata of each run's first image.

package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/vrsandeep/sd-gallery/internal/config"
	"github.com/vrsandeep/sd-gallery/internal/models"
	"github.com/vrsandeep/sd-gallery/internal/util"
)

// Scanner groups the images below the configured base directory.
type Scanner struct {
	cfg       *config.Config
	extractor *Extractor
	logger    *log.Logger
}

// NewScanner creates a new Scanner instance.
func NewScanner(cfg *config.Config, extractor *Extractor) *Scanner {
	return &Scanner{
		cfg:       cfg,
		extractor: extractor,
		logger:    log.With("component", "scanner"),
	}
}

// BaseDir returns the directory every scan is confined to.
func (s *Scanner) BaseDir() string {
	return s.cfg.Library.Path
}

// Resolve maps a path relative to the base directory onto an absolute
// path, refusing anything outside the base.
func (s *Scanner) Resolve(rel string) (string, error) {
	return util.SafeJoin(s.cfg.Library.Path, rel)
}

// Scan walks relDir (relative to the base directory) and returns its image
// groups numbered from 1. Files are visited directory by directory: the
// sorted files of a directory first, then its sorted subdirectories.
func (s *Scanner) Scan(ctx context.Context, relDir string) ([]*models.Group, error) {
	root, err := s.Resolve(relDir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: directory %s", ErrNotFound, relDir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotFound, relDir)
	}

	matcher := s.extractor.Matcher()
	var b groupBuilder
	err = s.walkFiles(ctx, root, true, func(path string) {
		name := filepath.Base(path)
		if !matcher.IsSupported(name) {
			return
		}
		_, seed := matcher.ExtractIDAndSeed(name)
		b.add(path, seed)
	})
	if err != nil {
		return nil, err
	}

	runs := b.finish()
	groups := make([]*models.Group, 0, len(runs))
	for i, run := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		groups = append(groups, s.buildGroup(i+1, root, run))
	}
	return groups, nil
}

func (s *Scanner) buildGroup(id int, root string, paths []string) *models.Group {
	matcher := s.extractor.Matcher()
	group := &models.Group{
		GroupID:  id,
		Images:   make([]*models.ImageRecord, 0, len(paths)),
		Metadata: s.extractor.Extract(paths[0]),
	}
	for _, p := range paths {
		name := filepath.Base(p)
		fileID, seed := matcher.ExtractIDAndSeed(name)
		group.Images = append(group.Images, &models.ImageRecord{
			Filename: name,
			Path:     util.RelativeTo(root, p),
			ID:       fileID,
			Seed:     seed,
		})
	}
	return group
}

// walkFiles calls fn for every non-directory entry below dir. Directories
// that cannot be read below the root are logged and skipped. Symlinked
// directories are not followed.
func (s *Scanner) walkFiles(ctx context.Context, dir string, isRoot bool, fn func(path string)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if isRoot {
			return err
		}
		s.logger.Warn("skipping unreadable directory", "path", dir, "err", err)
		return nil
	}

	// os.ReadDir returns entries sorted by filename.
	var subdirs []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, entry.Name())
		if isDirEntry(path, entry) {
			if entry.IsDir() {
				subdirs = append(subdirs, path)
			}
			continue
		}
		fn(path)
	}

	for _, sub := range subdirs {
		if err := s.walkFiles(ctx, sub, false, fn); err != nil {
			return err
		}
	}
	return nil
}

// isDirEntry reports whether entry is a directory or a symlink to one.
func isDirEntry(path string, entry fs.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// groupBuilder splits a stream of files into runs of consecutive seeds.
//
// A file whose name carries no seed closes the open run and becomes a run
// of its own, which stays open. It does not reset prevSeed, so a following
// file whose seed continues the run before it joins the unparsed file.
type groupBuilder struct {
	runs     [][]string
	current  []string
	prevSeed *int64
}

func (b *groupBuilder) add(path string, seed *int64) {
	if seed == nil {
		b.close()
		b.current = []string{path}
		return
	}
	if b.prevSeed == nil || *seed != *b.prevSeed+1 {
		b.close()
	}
	b.current = append(b.current, path)
	v := *seed
	b.prevSeed = &v
}

func (b *groupBuilder) close() {
	if len(b.current) > 0 {
		b.runs = append(b.runs, b.current)
	}
	b.current = nil
}

func (b *groupBuilder) finish() [][]string {
	b.close()
	return b.runs
}

// FilterGroups keeps the groups whose prompt or negative prompt contains
// term, ignoring case. An empty term keeps everything.
func FilterGroups(groups []*models.Group, term string) []*models.Group {
	if term == "" {
		return groups
	}
	term = strings.ToLower(term)
	filtered := make([]*models.Group, 0, len(groups))
	for _, g := range groups {
		if strings.Contains(strings.ToLower(g.Prompt), term) ||
			strings.Contains(strings.ToLower(g.NegativePrompt), term) {
			filtered = append(filtered, g)
		}
	}
	return filtered
}
