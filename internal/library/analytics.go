// This file aggregates generation parameters over scanned groups. Every
// group counts once per image it holds, since all images of a group share
// the first image's metadata.

package library

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/vrsandeep/sd-gallery/internal/models"
)

const (
	topWords = 20
	topLoras = 10
)

// Parameter keys written by the generating UIs.
const (
	paramModel   = "Model"
	paramSampler = "Sampler"
	paramSize    = "Size"
	paramCFG     = "CFG scale"
	paramSteps   = "Steps"
)

var resolutionOrder = []string{"Low (<0.5MP)", "Medium (0.5-1MP)", "High (1-2MP)", "Ultra High (>2MP)"}

var (
	loraPattern    = regexp.MustCompile(`<lora:([\w\-_]+)(?::([0-9.]+))?>`)
	wordPunct      = regexp.MustCompile("[.,/#!$%^&*;:{}=\\-_`~()]")
	leadingFloat   = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	leadingInteger = regexp.MustCompile(`^[+-]?\d+`)
)

type counter map[string]int

func (c counter) add(key string, n int) {
	c[key] += n
}

// sorted returns the entries by count, most frequent first, ties by name.
func (c counter) sorted(limit int) []models.NameCount {
	out := make([]models.NameCount, 0, len(c))
	for name, count := range c {
		out = append(out, models.NameCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type histogram map[int]int

func (h histogram) buckets() []models.Bucket {
	out := make([]models.Bucket, 0, len(h))
	for v, count := range h {
		out = append(out, models.Bucket{Value: v, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// Analyze builds an analytics report for the given groups.
func Analyze(groups []*models.Group) models.Analytics {
	var (
		modelCounts      = counter{}
		samplerCounts    = counter{}
		sizeCounts       = counter{}
		resolutions      = counter{}
		promptWords      = counter{}
		negativeWords    = counter{}
		loras            = counter{}
		cfgHist          = histogram{}
		stepsHist        = histogram{}
		cfgSum           float64
		cfgN             int
		stepsSum, stepsN int
		totalImages      int
	)

	for _, g := range groups {
		n := len(g.Images)
		totalImages += n
		params := g.Parameters

		if v := params[paramModel]; v != "" {
			modelCounts.add(v, n)
		}
		if v := params[paramSampler]; v != "" {
			samplerCounts.add(v, n)
		}
		if v := params[paramSize]; v != "" {
			sizeCounts.add(v, n)
			if bucket, ok := resolutionBucket(v); ok {
				resolutions.add(bucket, n)
			}
		}
		if v, ok := parseLeadingFloat(params[paramCFG]); ok {
			cfgHist[int(math.Floor(v))] += n
			cfgSum += v * float64(n)
			cfgN += n
		}
		if v, ok := parseLeadingInt(params[paramSteps]); ok {
			stepsHist[int(math.Floor(float64(v)/5))*5] += n
			stepsSum += v * n
			stepsN += n
		}

		for _, w := range analyticsWords(g.Prompt) {
			promptWords.add(w, n)
		}
		for _, w := range analyticsWords(g.NegativePrompt) {
			negativeWords.add(w, n)
		}
		for _, m := range loraPattern.FindAllStringSubmatch(g.Prompt, -1) {
			loras.add(m[1], n)
		}
	}

	report := models.Analytics{
		Summary: models.AnalyticsSummary{
			TotalGroups:    len(groups),
			TotalImages:    totalImages,
			UniqueModels:   len(modelCounts),
			UniqueSamplers: len(samplerCounts),
			UniqueSizes:    len(sizeCounts),
			UniqueLoras:    len(loras),
		},
		Models:              modelCounts.sorted(0),
		Samplers:            samplerCounts.sorted(0),
		Sizes:               sizeCounts.sorted(0),
		Resolutions:         make([]models.NameCount, 0, len(resolutions)),
		CFGScales:           cfgHist.buckets(),
		Steps:               stepsHist.buckets(),
		PromptWords:         promptWords.sorted(topWords),
		NegativePromptWords: negativeWords.sorted(topWords),
		Loras:               loras.sorted(topLoras),
	}
	for _, name := range resolutionOrder {
		if c, ok := resolutions[name]; ok {
			report.Resolutions = append(report.Resolutions, models.NameCount{Name: name, Count: c})
		}
	}
	if cfgN > 0 {
		avg := math.Round(cfgSum/float64(cfgN)*10) / 10
		report.Summary.AvgCFGScale = &avg
	}
	if stepsN > 0 {
		avg := int(math.Round(float64(stepsSum) / float64(stepsN)))
		report.Summary.AvgSteps = &avg
	}
	return report
}

// resolutionBucket classifies a "WxH" size by megapixels.
func resolutionBucket(size string) (string, bool) {
	parts := strings.Split(size, "x")
	if len(parts) < 2 {
		return "", false
	}
	w, errW := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	h, errH := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errW != nil || errH != nil || w == 0 || h == 0 {
		return "", false
	}
	switch px := w * h; {
	case px < 500_000:
		return resolutionOrder[0], true
	case px < 1_000_000:
		return resolutionOrder[1], true
	case px < 2_000_000:
		return resolutionOrder[2], true
	}
	return resolutionOrder[3], true
}

// analyticsWords lowercases text, strips punctuation and keeps the words
// longer than three characters.
func analyticsWords(text string) []string {
	if text == "" {
		return nil
	}
	cleaned := wordPunct.ReplaceAllString(strings.ToLower(text), "")
	var words []string
	for _, w := range strings.Fields(cleaned) {
		if len([]rune(w)) > 3 {
			words = append(words, w)
		}
	}
	return words
}

// parseLeadingFloat reads the number at the start of s, ignoring anything
// after it ("7.5 (auto)" gives 7.5).
func parseLeadingFloat(s string) (float64, bool) {
	m := leadingFloat.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseLeadingInt(s string) (int, bool) {
	m := leadingInteger.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CommonTags counts prompt words over the groups, once per group, most
// frequent first. A limit of zero or less returns every word.
func CommonTags(groups []*models.Group, limit int) []models.NameCount {
	tags := counter{}
	for _, g := range groups {
		for _, w := range g.PromptWords {
			tags.add(w, 1)
		}
	}
	return tags.sorted(limit)
}
