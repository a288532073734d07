// This file handles the logic for extracting generation metadata from image
// files. Decode problems never reach the caller: they are logged and the
// image is treated as carrying no metadata.

package library

import (
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/vrsandeep/sd-gallery/internal/models"
)

// parametersKey is the PNG text keyword used by Stable Diffusion UIs.
const parametersKey = "parameters"

// Status tells how an extraction ended.
type Status int

const (
	// StatusFound means embedded generation text was read.
	StatusFound Status = iota
	// StatusNoMetadata means the image was readable but carries no text.
	StatusNoMetadata
	// StatusDecodeFailed means the file could not be opened or parsed.
	StatusDecodeFailed
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNoMetadata:
		return "none"
	case StatusDecodeFailed:
		return "decode_failed"
	}
	return "unknown"
}

// ExtractResult is the outcome of reading one file. Metadata is always
// usable; Err is set only for StatusDecodeFailed.
type ExtractResult struct {
	Metadata models.Metadata
	Status   Status
	Err      error
}

// Extractor reads metadata for the configured file types.
type Extractor struct {
	matcher *FileMatcher
	logger  *log.Logger
}

// NewExtractor creates an extractor using the given matcher for filename
// rules.
func NewExtractor(matcher *FileMatcher) *Extractor {
	return &Extractor{
		matcher: matcher,
		logger:  log.With("component", "extractor"),
	}
}

// Matcher returns the filename rules used by the extractor.
func (e *Extractor) Matcher() *FileMatcher {
	return e.matcher
}

// Extract returns the parsed metadata of the image at path, or empty
// metadata when there is none or it cannot be read.
func (e *Extractor) Extract(path string) models.Metadata {
	return e.ExtractResult(path).Metadata
}

// ExtractResult is like Extract but reports why metadata may be empty.
func (e *Extractor) ExtractResult(path string) ExtractResult {
	raw, err := readRawTextFile(path)
	if err != nil {
		e.logger.Warn("cannot read image metadata", "path", path, "err", err)
		return ExtractResult{
			Metadata: models.EmptyMetadata(),
			Status:   StatusDecodeFailed,
			Err:      err,
		}
	}
	if raw == "" {
		return ExtractResult{Metadata: models.EmptyMetadata(), Status: StatusNoMetadata}
	}
	return ExtractResult{Metadata: ParseMetadata(raw), Status: StatusFound}
}

func readRawTextFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ReadRawText(f)
}

// ReadRawText locates the generation text of an image. The "parameters"
// text chunk is used unless a non-empty EXIF UserComment overrides it.
// Without EXIF, a container comment (GIF, JPEG) is used instead.
func ReadRawText(r io.ReadSeeker) (string, error) {
	info, err := readImageInfo(r)
	if err != nil {
		if !errors.Is(err, ErrDecode) {
			err = decodeErr("image", err)
		}
		return "", err
	}

	raw := info.text[parametersKey]
	switch {
	case info.hasExif:
		if comment := exifUserComment(info.exif); comment != "" {
			raw = comment
		}
	case info.hasComment:
		raw = lenientUTF8(info.comment)
	}
	return raw, nil
}
