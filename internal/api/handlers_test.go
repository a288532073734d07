package api_test

import (
	"bytes"
	"image/jpeg"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/sd-gallery/internal/models"
	"github.com/vrsandeep/sd-gallery/internal/testutil"
)

func TestHandleHealthAndConfig(t *testing.T) {
	server, _ := newTestServer(t, nil)
	router := server.Router()

	rr := doRequest(t, router, "/api/health")
	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	var health map[string]string
	decodeJSON(t, rr, &health)
	assert.Equal(t, "ok", health["status"])

	rr = doRequest(t, router, "/api/config")
	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	var cfg struct {
		SupportedExtensions []string `json:"supported_extensions"`
		Version             string   `json:"version"`
	}
	decodeJSON(t, rr, &cfg)
	assert.Equal(t, []string{".webp", ".png"}, cfg.SupportedExtensions)
	assert.NotEmpty(t, cfg.Version)
}

func TestHandleGetGroups(t *testing.T) {
	server, dir := newTestServer(t, nil)
	router := server.Router()
	seedLibrary(t, dir)

	t.Run("Whole library", func(t *testing.T) {
		rr := doRequest(t, router, "/api/groups")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

		var resp models.GroupsResponse
		decodeJSON(t, rr, &resp)
		require.Equal(t, 3, resp.TotalGroups)
		require.Len(t, resp.Groups, 3)

		first := resp.Groups[0]
		assert.Equal(t, 1, first.GroupID)
		require.Len(t, first.Images, 2)
		assert.Equal(t, "1-10.png", first.Images[0].Filename)
		assert.Equal(t, "1-11.png", first.Images[1].Path)
		assert.Equal(t, "a castle, night", first.Prompt)
		assert.Equal(t, []string{"a castle", "night"}, first.PromptWords)
		assert.Equal(t, "Euler a", first.Parameters["Sampler"])

		assert.Equal(t, "sub/3-1.png", resp.Groups[2].Images[0].Path)
	})

	t.Run("Search", func(t *testing.T) {
		rr := doRequest(t, router, "/api/groups?search=FOREST")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp models.GroupsResponse
		decodeJSON(t, rr, &resp)
		require.Equal(t, 1, resp.TotalGroups)
		assert.Equal(t, 2, resp.Groups[0].GroupID)
	})

	t.Run("Subdirectory", func(t *testing.T) {
		rr := doRequest(t, router, "/api/groups?directory=sub")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp models.GroupsResponse
		decodeJSON(t, rr, &resp)
		require.Equal(t, 1, resp.TotalGroups)
		assert.Equal(t, "3-1.png", resp.Groups[0].Images[0].Path)
	})

	t.Run("Empty result is a list", func(t *testing.T) {
		rr := doRequest(t, router, "/api/groups?search=nothing-matches")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"total_groups":0,"groups":[]}`, rr.Body.String())
	})

	t.Run("Outside base directory", func(t *testing.T) {
		rr := doRequest(t, router, "/api/groups?directory=../../etc")
		if status := rr.Code; status != http.StatusForbidden {
			t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusForbidden)
		}
		var body map[string]string
		decodeJSON(t, rr, &body)
		assert.Contains(t, body["error"], "access denied")
	})

	t.Run("Missing directory", func(t *testing.T) {
		rr := doRequest(t, router, "/api/groups?directory=missing")
		if status := rr.Code; status != http.StatusNotFound {
			t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusNotFound)
		}
	})
}

func TestHandleServeImage(t *testing.T) {
	server, dir := newTestServer(t, nil)
	router := server.Router()
	seedLibrary(t, dir)

	t.Run("Success", func(t *testing.T) {
		rr := doRequest(t, router, "/api/images/1-10.png")
		if status := rr.Code; status != http.StatusOK {
			t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
		}
		if contentType := rr.Header().Get("Content-Type"); contentType != "image/png" {
			t.Errorf("handler returned wrong content type: got %v want %v", contentType, "image/png")
		}
		assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")))
	})

	t.Run("With directory", func(t *testing.T) {
		rr := doRequest(t, router, "/api/images/3-1.png?directory=sub")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Nested path", func(t *testing.T) {
		rr := doRequest(t, router, "/api/images/sub/3-1.png")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Not found", func(t *testing.T) {
		rr := doRequest(t, router, "/api/images/9-9.png")
		if status := rr.Code; status != http.StatusNotFound {
			t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusNotFound)
		}
		assert.JSONEq(t, `{"error":"File not found"}`, rr.Body.String())
	})

	t.Run("Directory is not a file", func(t *testing.T) {
		rr := doRequest(t, router, "/api/images/sub")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Outside base directory", func(t *testing.T) {
		rr := doRequest(t, router, "/api/images/passwd?directory=../../../../etc")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestHandleGetImageMetadata(t *testing.T) {
	server, dir := newTestServer(t, nil)
	router := server.Router()
	seedLibrary(t, dir)
	testutil.WriteFile(t, dir, "plain.png", testutil.EncodePNG(t, 2, 2))

	t.Run("Success", func(t *testing.T) {
		rr := doRequest(t, router, "/api/metadata/2-50.png")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp models.ImageMetadataResponse
		decodeJSON(t, rr, &resp)
		assert.Equal(t, "2-50.png", resp.Filename)
		require.NotNil(t, resp.ID)
		require.NotNil(t, resp.Seed)
		assert.Equal(t, int64(2), *resp.ID)
		assert.Equal(t, int64(50), *resp.Seed)
		assert.Equal(t, "a forest", resp.Metadata.Prompt)
		assert.Equal(t, "lowres", resp.Metadata.NegativePrompt)
		assert.Equal(t, "30", resp.Metadata.Parameters["Steps"])
	})

	t.Run("No metadata", func(t *testing.T) {
		rr := doRequest(t, router, "/api/metadata/plain.png")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{
			"filename": "plain.png",
			"id": null,
			"seed": null,
			"metadata": {
				"raw_metadata": "",
				"prompt": "",
				"prompt_words": [],
				"negative_prompt": "",
				"generation_params": {}
			}
		}`, rr.Body.String())
	})

	t.Run("Not found", func(t *testing.T) {
		rr := doRequest(t, router, "/api/metadata/missing.png")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestHandleListDirectories(t *testing.T) {
	server, dir := newTestServer(t, nil)
	router := server.Router()
	seedLibrary(t, dir)

	rr := doRequest(t, router, "/api/directories")
	require.Equal(t, http.StatusOK, rr.Code)
	var listing models.DirectoryListing
	decodeJSON(t, rr, &listing)
	assert.Equal(t, "", listing.CurrentPath)
	assert.Equal(t, 3, listing.TotalImagesInCurrent)
	require.Len(t, listing.Directories, 1)
	assert.Equal(t, models.DirectoryInfo{Name: "sub", Path: "sub", TotalImages: 1}, *listing.Directories[0])

	rr = doRequest(t, router, "/api/directories?path=sub")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"current_path":"sub","directories":[],"total_images_in_current":1}`, rr.Body.String())

	rr = doRequest(t, router, "/api/directories?path=missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, router, "/api/directories?path=..")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandleGetThumbnail(t *testing.T) {
	server, dir := newTestServer(t, nil)
	router := server.Router()
	testutil.WriteFile(t, dir, "big.png", testutil.EncodePNG(t, 400, 200))
	testutil.WriteFile(t, dir, "broken.png", []byte("not an image"))

	t.Run("Default size", func(t *testing.T) {
		rr := doRequest(t, router, "/api/thumbnails/big.png")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))

		img, err := jpeg.Decode(bytes.NewReader(rr.Body.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, 256, img.Bounds().Dx())
		assert.Equal(t, 128, img.Bounds().Dy())
	})

	t.Run("Size is clamped", func(t *testing.T) {
		rr := doRequest(t, router, "/api/thumbnails/big.png?size=1")
		require.Equal(t, http.StatusOK, rr.Code)
		img, err := jpeg.Decode(bytes.NewReader(rr.Body.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, 32, img.Bounds().Dx())
	})

	t.Run("Undecodable", func(t *testing.T) {
		rr := doRequest(t, router, "/api/thumbnails/broken.png")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("Not found", func(t *testing.T) {
		rr := doRequest(t, router, "/api/thumbnails/missing.png")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestHandleGetAnalytics(t *testing.T) {
	server, dir := newTestServer(t, nil)
	router := server.Router()
	seedLibrary(t, dir)

	rr := doRequest(t, router, "/api/analytics")
	require.Equal(t, http.StatusOK, rr.Code)

	var report models.Analytics
	decodeJSON(t, rr, &report)
	assert.Equal(t, 3, report.Summary.TotalGroups)
	assert.Equal(t, 4, report.Summary.TotalImages)
	assert.Equal(t, 1, report.Summary.UniqueModels)
	assert.Equal(t, []models.NameCount{{Name: "sdxl", Count: 4}}, report.Models)

	rr = doRequest(t, router, "/api/analytics?directory=missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleGetCommonTags(t *testing.T) {
	server, dir := newTestServer(t, nil)
	router := server.Router()
	seedLibrary(t, dir)

	rr := doRequest(t, router, "/api/common-tags")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Tags []models.NameCount `json:"tags"`
	}
	decodeJSON(t, rr, &resp)
	assert.Equal(t, []models.NameCount{
		{Name: "a castle", Count: 2},
		{Name: "night", Count: 2},
		{Name: "a forest", Count: 1},
	}, resp.Tags)

	rr = doRequest(t, router, "/api/common-tags?limit=1")
	require.Equal(t, http.StatusOK, rr.Code)
	decodeJSON(t, rr, &resp)
	assert.Len(t, resp.Tags, 1)

	rr = doRequest(t, router, "/api/common-tags?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
