package api

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vrsandeep/sd-gallery/internal/library"
	"github.com/vrsandeep/sd-gallery/internal/models"
)

const defaultCommonTagsLimit = 50

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"supported_extensions": s.app.Matcher.Extensions(),
		"version":              s.app.Version,
	})
}

// respondWithLibraryError turns a scanner error into a JSON error response.
func (s *Server) respondWithLibraryError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusForError(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
		RespondWithError(w, code, fmt.Sprintf("Error processing request: %v", err))
		return
	}
	RespondWithError(w, code, err.Error())
}

func (s *Server) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	directory := r.URL.Query().Get("directory")
	search := r.URL.Query().Get("search")

	groups, err := s.app.Scanner.Scan(r.Context(), directory)
	if err != nil {
		s.respondWithLibraryError(w, r, err)
		return
	}
	groups = library.FilterGroups(groups, search)

	RespondWithJSON(w, http.StatusOK, models.GroupsResponse{
		TotalGroups: len(groups),
		Groups:      groups,
	})
}

func (s *Server) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	listing, err := s.app.Scanner.ListDirectories(r.URL.Query().Get("path"))
	if err != nil {
		s.respondWithLibraryError(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, listing)
}

// resolveImage maps the wildcard part of the URL plus the optional
// "directory" query parameter onto a regular file below the base directory.
func (s *Server) resolveImage(w http.ResponseWriter, r *http.Request) (string, bool) {
	file := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		// chi routes on the escaped path when one is present.
		if unescaped, err := url.PathUnescape(file); err == nil {
			file = unescaped
		}
	}

	rel := file
	if !filepath.IsAbs(file) {
		rel = filepath.Join(r.URL.Query().Get("directory"), file)
	}
	path, err := s.app.Scanner.Resolve(rel)
	if err != nil {
		RespondWithError(w, statusForError(err), err.Error())
		return "", false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		RespondWithError(w, http.StatusNotFound, "File not found")
		return "", false
	}
	return path, true
}

func (s *Server) handleServeImage(w http.ResponseWriter, r *http.Request) {
	path, ok := s.resolveImage(w, r)
	if !ok {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Could not read file")
		return
	}
	// ServeContent picks the content type from the extension, falling back
	// to sniffing the first bytes.
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) handleGetImageMetadata(w http.ResponseWriter, r *http.Request) {
	path, ok := s.resolveImage(w, r)
	if !ok {
		return
	}

	name := filepath.Base(path)
	id, seed := s.app.Matcher.ExtractIDAndSeed(name)
	RespondWithJSON(w, http.StatusOK, models.ImageMetadataResponse{
		Filename: name,
		ID:       id,
		Seed:     seed,
		Metadata: s.app.Extractor.Extract(path),
	})
}

func (s *Server) handleGetThumbnail(w http.ResponseWriter, r *http.Request) {
	path, ok := s.resolveImage(w, r)
	if !ok {
		return
	}

	size := s.app.Config.Thumbnail.Size
	if raw := r.URL.Query().Get("size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			size = n
		}
	}
	size = library.ClampThumbnailSize(size)

	data, err := os.ReadFile(path)
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "File not found")
		return
	}
	thumb, err := library.GenerateThumbnail(data, size)
	if err != nil {
		s.logger.Warn("thumbnail generation failed", "path", path, "err", err)
		RespondWithError(w, http.StatusUnprocessableEntity, "Cannot create thumbnail")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(thumb)
}

func (s *Server) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	groups, err := s.app.Scanner.Scan(r.Context(), r.URL.Query().Get("directory"))
	if err != nil {
		s.respondWithLibraryError(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, library.Analyze(groups))
}

func (s *Server) handleGetCommonTags(w http.ResponseWriter, r *http.Request) {
	limit := defaultCommonTagsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			RespondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	groups, err := s.app.Scanner.Scan(r.Context(), r.URL.Query().Get("directory"))
	if err != nil {
		s.respondWithLibraryError(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"tags": library.CommonTags(groups, limit),
	})
}
