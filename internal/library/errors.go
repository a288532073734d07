package library

import (
	"errors"

	"github.com/vrsandeep/sd-gallery/internal/util"
)

var (
	// ErrAccessDenied means a requested path escapes the base directory.
	ErrAccessDenied = util.ErrAccessDenied
	// ErrNotFound means a requested directory or file does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDecode means an image container could not be parsed. It never
	// leaves the Extractor; callers only see empty metadata.
	ErrDecode = errors.New("cannot decode image")
)
