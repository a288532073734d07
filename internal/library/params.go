// This file turns the raw generation text written by Stable Diffusion UIs
// into prompt, negative prompt and generation parameters.
//
// The text looks like:
//
//	a cat, sitting on a chair
//	Negative prompt: blurry, lowres
//	Steps: 20, Sampler: Euler a, CFG scale: 7, Seed: 12345, Size: 512x768

package library

import (
	"strings"
	"unicode/utf8"

	"github.com/vrsandeep/sd-gallery/internal/models"
)

const negativePromptMarker = "Negative prompt:"

// paramMarkers flag the first line of the parameters block.
var paramMarkers = []string{"Steps:", "Sampler:", "Seed:", "Size:", "Model:"}

type parseSection int

const (
	sectionPrompt parseSection = iota
	sectionNegative
	sectionParams
)

// ParseMetadata parses raw generation text. It never fails; an empty input
// gives empty fields.
func ParseMetadata(raw string) models.Metadata {
	md := models.EmptyMetadata()
	md.RawText = raw
	if raw == "" {
		return md
	}

	var promptLines, negativeLines []string
	section := sectionPrompt

	for _, line := range splitLines(raw) {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(line, negativePromptMarker) {
			section = sectionNegative
			if rest := strings.TrimSpace(line[len(negativePromptMarker):]); rest != "" {
				negativeLines = append(negativeLines, rest)
			}
			continue
		}

		switch section {
		case sectionPrompt:
			if trimmed != "" {
				promptLines = append(promptLines, trimmed)
			}
		case sectionNegative:
			if trimmed == "" {
				continue
			}
			if hasParamMarker(line) {
				section = sectionParams
				parseParamLine(line, md.Parameters)
				continue
			}
			negativeLines = append(negativeLines, trimmed)
		case sectionParams:
			parseParamLine(line, md.Parameters)
		}
	}

	md.Prompt = strings.Join(promptLines, "\n")
	md.NegativePrompt = strings.Join(negativeLines, "\n")
	for _, line := range promptLines {
		md.PromptWords = append(md.PromptWords, splitPromptWords(line)...)
	}
	return md
}

func hasParamMarker(line string) bool {
	for _, m := range paramMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// parseParamLine reads "Key: value, Key: value" pairs into params. Only the
// first colon separates key from value.
func parseParamLine(line string, params map[string]string) {
	for _, seg := range strings.Split(line, ",") {
		seg = strings.TrimSpace(seg)
		key, value, ok := strings.Cut(seg, ":")
		if !ok {
			continue
		}
		params[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
}

// splitPromptWords splits on runs of commas and lowercases each word.
func splitPromptWords(line string) []string {
	var words []string
	for _, w := range strings.Split(line, ",") {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// splitLines breaks text on \n, \r\n, \r and the other Unicode line
// boundaries. A trailing boundary does not produce an empty last line.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isLineBoundary(r) {
			i += size
			continue
		}
		lines = append(lines, s[start:i])
		i += size
		if r == '\r' && i < len(s) && s[i] == '\n' {
			i++
		}
		start = i
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func isLineBoundary(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
