package models

// NameCount is a labelled counter used across analytics responses.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Bucket is one bar of a numeric histogram.
type Bucket struct {
	Value int `json:"value"`
	Count int `json:"count"`
}

// AnalyticsSummary holds the headline numbers of an analytics report.
type AnalyticsSummary struct {
	TotalGroups    int      `json:"total_groups"`
	TotalImages    int      `json:"total_images"`
	UniqueModels   int      `json:"unique_models"`
	UniqueSamplers int      `json:"unique_samplers"`
	UniqueSizes    int      `json:"unique_sizes"`
	UniqueLoras    int      `json:"unique_loras"`
	AvgCFGScale    *float64 `json:"avg_cfg_scale"`
	AvgSteps       *int     `json:"avg_steps"`
}

// Analytics aggregates generation parameters over a directory's groups.
type Analytics struct {
	Summary             AnalyticsSummary `json:"summary"`
	Models              []NameCount      `json:"models"`
	Samplers            []NameCount      `json:"samplers"`
	Sizes               []NameCount      `json:"sizes"`
	Resolutions         []NameCount      `json:"resolutions"`
	CFGScales           []Bucket         `json:"cfg_scales"`
	Steps               []Bucket         `json:"steps"`
	PromptWords         []NameCount      `json:"prompt_words"`
	NegativePromptWords []NameCount      `json:"negative_prompt_words"`
	Loras               []NameCount      `json:"loras"`
}

// CommonTagsResponse is the body of GET /api/common-tags.
type CommonTagsResponse struct {
	Tags []NameCount `json:"tags"`
}

// LibraryEvent is pushed to websocket clients when files change on disk.
type LibraryEvent struct {
	Type  string   `json:"type"`
	Paths []string `json:"paths"`
}
