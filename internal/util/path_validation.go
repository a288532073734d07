package util

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrAccessDenied is returned when a requested path resolves outside the
// base directory.
var ErrAccessDenied = errors.New("access denied")

// SafeJoin resolves requested against base and returns the absolute result.
// An absolute requested path replaces base entirely before the check, so
// "/etc" is rejected rather than silently re-rooted.
//
// Containment is a plain string-prefix test of the resolved target against
// the resolved base. Symlinks are not followed.
func SafeJoin(base, requested string) (string, error) {
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}

	target := requested
	if !filepath.IsAbs(target) {
		target = filepath.Join(baseAbs, requested)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(targetAbs, baseAbs) {
		return "", fmt.Errorf("%w: %s is outside the base directory", ErrAccessDenied, requested)
	}
	return targetAbs, nil
}

// IsSafePath reports whether requested stays inside base.
func IsSafePath(base, requested string) bool {
	_, err := SafeJoin(base, requested)
	return err == nil
}

// RelativeTo returns target relative to base using forward slashes. The
// base itself maps to "".
func RelativeTo(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}
