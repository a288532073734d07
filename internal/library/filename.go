// This file handles the logic for reading generation ids and seeds from
// file names like "00042-1234567.png".

package library

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// FileMatcher knows which files belong to the gallery and how to read the
// "<id>-<seed>.<ext>" naming scheme.
type FileMatcher struct {
	extensions []string
	idSeed     *regexp.Regexp
}

// NewFileMatcher builds a matcher for the given extensions. Each extension
// is expected lowercase with a leading dot, as produced by
// config.NormalizeExtensions.
func NewFileMatcher(extensions []string) *FileMatcher {
	alts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		alts = append(alts, regexp.QuoteMeta(strings.TrimPrefix(ext, ".")))
	}
	m := &FileMatcher{extensions: extensions}
	if len(alts) > 0 {
		m.idSeed = regexp.MustCompile(`^(\d+)-(\d+)\.(` + strings.Join(alts, "|") + `)$`)
	}
	return m
}

// Extensions returns the supported extensions.
func (m *FileMatcher) Extensions() []string {
	return m.extensions
}

// IsSupported checks if the file has a supported extension. Leading dots
// are not an extension, so ".png" on its own is not an image.
func (m *FileMatcher) IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(strings.TrimLeft(name, ".")))
	if ext == "" {
		return false
	}
	for _, e := range m.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ExtractIDAndSeed returns the two numbers of an "<id>-<seed>.<ext>" name,
// or (nil, nil) when the name does not follow that form.
func (m *FileMatcher) ExtractIDAndSeed(name string) (*int64, *int64) {
	if m.idSeed == nil {
		return nil, nil
	}
	match := m.idSeed.FindStringSubmatch(strings.ToLower(name))
	if match == nil {
		return nil, nil
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return nil, nil
	}
	seed, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil {
		return nil, nil
	}
	return &id, &seed
}
