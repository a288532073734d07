package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/vrsandeep/sd-gallery/internal/models"
	"github.com/vrsandeep/sd-gallery/internal/util"
)

// ListDirectories lists the immediate subdirectories of rel (relative to
// the base directory) with their own image counts, and counts the images
// directly inside rel. Subdirectories that cannot be read are left out.
func (s *Scanner) ListDirectories(rel string) (*models.DirectoryListing, error) {
	abs, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	base, err := filepath.Abs(s.cfg.Library.Path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: path %s", ErrNotFound, rel)
		}
		return nil, err
	}

	matcher := s.extractor.Matcher()
	listing := &models.DirectoryListing{
		CurrentPath: util.RelativeTo(base, abs),
		Directories: []*models.DirectoryInfo{},
	}
	for _, entry := range entries {
		path := filepath.Join(abs, entry.Name())
		if !isDirEntry(path, entry) {
			if matcher.IsSupported(entry.Name()) {
				listing.TotalImagesInCurrent++
			}
			continue
		}
		count, err := s.countImages(path)
		if err != nil {
			s.logger.Debug("skipping unreadable directory", "path", path, "err", err)
			continue
		}
		listing.Directories = append(listing.Directories, &models.DirectoryInfo{
			Name:        entry.Name(),
			Path:        util.RelativeTo(base, path),
			TotalImages: count,
		})
	}

	sort.SliceStable(listing.Directories, func(i, j int) bool {
		return util.NaturalSortLess(listing.Directories[i].Name, listing.Directories[j].Name)
	})
	return listing, nil
}

// countImages counts the supported files directly inside dir.
func (s *Scanner) countImages(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	matcher := s.extractor.Matcher()
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && matcher.IsSupported(entry.Name()) {
			count++
		}
	}
	return count, nil
}
