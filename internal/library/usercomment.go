package library

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// Character code prefixes of the EXIF UserComment tag.
var (
	asciiPrefix   = []byte("ASCII\x00\x00\x00")
	jisPrefix     = []byte("JIS\x00\x00\x00\x00\x00")
	unicodePrefix = []byte("UNICODE\x00")
)

var errUndecodableComment = errors.New("cannot determine UserComment encoding")

// exifUserComment returns the decoded UserComment of a raw EXIF block. A
// block that cannot be parsed has no comment.
func exifUserComment(block []byte) string {
	block = bytes.TrimPrefix(block, []byte("Exif\x00\x00"))
	x, err := exif.Decode(bytes.NewReader(block))
	if x == nil {
		return ""
	}
	if err != nil && exif.IsCriticalError(err) {
		return ""
	}
	tag, err := x.Get(exif.UserComment)
	if err != nil || tag == nil {
		return ""
	}

	comment, err := decodeUserComment(tag.Val)
	if err != nil {
		return strings.Trim(lenientUTF8(tag.Val), "\x00")
	}
	return comment
}

// decodeUserComment decodes a UserComment payload according to its 8-byte
// character code. Undefined or unknown codes are an error.
func decodeUserComment(data []byte) (string, error) {
	if len(data) < 8 {
		return "", errUndecodableComment
	}
	prefix, body := data[:8], data[8:]

	switch {
	case bytes.Equal(prefix, asciiPrefix):
		return decodeASCII(body), nil
	case bytes.Equal(prefix, unicodePrefix):
		s, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(body)
		if err != nil {
			return "", err
		}
		return string(s), nil
	case bytes.Equal(prefix, jisPrefix):
		s, err := japanese.ShiftJIS.NewDecoder().Bytes(body)
		if err != nil {
			return "", err
		}
		return string(s), nil
	}
	// Undefined (all NUL) and unknown codes.
	return "", errUndecodableComment
}

// decodeASCII maps every byte above 0x7F to the replacement character.
func decodeASCII(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c > 0x7F {
			sb.WriteRune(utf8.RuneError)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// lenientUTF8 drops invalid UTF-8 sequences.
func lenientUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}
