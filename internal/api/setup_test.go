package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vrsandeep/sd-gallery/internal/api"
	"github.com/vrsandeep/sd-gallery/internal/config"
	"github.com/vrsandeep/sd-gallery/internal/core"
	"github.com/vrsandeep/sd-gallery/internal/testutil"
)

// newTestServer builds a server over a fresh library directory. configure,
// when given, may adjust the config before the app is created.
func newTestServer(t *testing.T, configure func(cfg *config.Config)) (*api.Server, string) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Library.Path = t.TempDir()
	cfg.Library.Extensions = config.DefaultExtensions
	cfg.CORS.AllowedOrigins = []string{"*"}
	cfg.Thumbnail.Size = 256
	cfg.Log.Level = "error"
	if configure != nil {
		configure(cfg)
	}

	app, err := core.NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	t.Cleanup(app.Close)

	return api.NewServer(app), app.Config.Library.Path
}

// seedLibrary writes a small library:
//
//	1-10.png 1-11.png  castle prompt
//	2-50.png           forest prompt
//	sub/3-1.png        castle prompt
func seedLibrary(t *testing.T, dir string) {
	t.Helper()
	castle := testutil.GenerationText("a castle, night", "blurry",
		"Steps: 20, Sampler: Euler a, CFG scale: 7, Seed: 10, Size: 512x512, Model: sdxl")
	forest := testutil.GenerationText("a forest", "lowres",
		"Steps: 30, Sampler: DPM++ 2M, CFG scale: 5, Seed: 50, Size: 1024x1024, Model: sdxl")

	testutil.WriteGenerationPNG(t, dir, "1-10.png", castle)
	testutil.WriteGenerationPNG(t, dir, "1-11.png", castle)
	testutil.WriteGenerationPNG(t, dir, "2-50.png", forest)
	testutil.WriteGenerationPNG(t, dir, "sub/3-1.png", castle)
	testutil.WriteFile(t, dir, "notes.txt", []byte("ignored"))
}

func doRequest(t *testing.T, handler http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest("GET", target, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
}
