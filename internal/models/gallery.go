// This file defines the core data structures (models) for the gallery.
// They mirror the JSON shapes served by the HTTP API.

package models

// Metadata is the generation info embedded in a single image.
type Metadata struct {
	RawText        string            `json:"raw_metadata"`
	Prompt         string            `json:"prompt"`
	PromptWords    []string          `json:"prompt_words"`
	NegativePrompt string            `json:"negative_prompt"`
	Parameters     map[string]string `json:"generation_params"`
}

// EmptyMetadata returns Metadata whose collections are empty rather than nil,
// so they serialize as [] and {}.
func EmptyMetadata() Metadata {
	return Metadata{
		PromptWords: []string{},
		Parameters:  map[string]string{},
	}
}

// ImageRecord describes one image file inside a scanned directory. ID and
// Seed are nil when the filename does not follow the "<id>-<seed>.<ext>" form.
type ImageRecord struct {
	Filename string `json:"filename"`
	Path     string `json:"path"` // relative to the scanned directory
	ID       *int64 `json:"id"`
	Seed     *int64 `json:"seed"`
}

// Group is a run of images with consecutive seeds. Its metadata is taken
// from the first image only.
type Group struct {
	GroupID int            `json:"group_id"`
	Images  []*ImageRecord `json:"images"`
	Metadata
}

// GroupsResponse is the body of GET /api/groups.
type GroupsResponse struct {
	TotalGroups int      `json:"total_groups"`
	Groups      []*Group `json:"groups"`
}

// ImageMetadataResponse is the body of GET /api/metadata/*.
type ImageMetadataResponse struct {
	Filename string   `json:"filename"`
	ID       *int64   `json:"id"`
	Seed     *int64   `json:"seed"`
	Metadata Metadata `json:"metadata"`
}

// DirectoryInfo is one immediate subdirectory in a listing.
type DirectoryInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"` // relative to the base directory
	TotalImages int    `json:"total_images"`
}

// DirectoryListing is the body of GET /api/directories.
type DirectoryListing struct {
	CurrentPath          string           `json:"current_path"`
	Directories          []*DirectoryInfo `json:"directories"`
	TotalImagesInCurrent int              `json:"total_images_in_current"`
}
