package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shelfmark/shelfmark/lib/images"
	"github.com/shelfmark/shelfmark/lib/metadata"
	"github.com/shelfmark/shelfmark/lib/metrics"
	"github.com/shelfmark/shelfmark/lib/validation"
	"github.com/shelfmark/shelfmark/models"
)

// errInvalidBody is returned (and already written) by decodeJSON.
var errInvalidBody = errors.New("invalid request body")

// decodeJSON decodes a request body and writes the error response itself
// on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		validation.WriteError(w, fmt.Errorf("invalid JSON: %w", err), http.StatusBadRequest)
		return errInvalidBody
	}
	return nil
}

func mediaTypeParam(r *http.Request) (models.MediaType, error) {
	t := models.MediaType(strings.TrimSpace(r.URL.Query().Get("type")))
	if !t.Valid() {
		return "", fmt.Errorf("type must be one of movie, tv, book")
	}
	return t, nil
}

// HandleSharedImages serves the top shared covers for a (title, type)
// pair, most reused first.
func HandleSharedImages(svc *images.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		title := strings.TrimSpace(r.URL.Query().Get("title"))
		if title == "" {
			validation.WriteError(w, errors.New("title is required"), http.StatusBadRequest)
			return
		}
		mediaType, err := mediaTypeParam(r)
		if err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		found, err := svc.Find(r.Context(), title, mediaType)
		if err != nil {
			writeServiceError(w, err, "find shared images")
			return
		}
		validation.WriteJSON(w, found, http.StatusOK)
	}
}

type generateImageRequest struct {
	Title string           `json:"title"`
	Type  models.MediaType `json:"type"`
}

// HandleGenerateImage resolves a cover for a title: a shared image when
// one exists, otherwise a generated or deterministic placeholder URL.
func HandleGenerateImage(svc *images.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateImageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			validation.WriteError(w, errors.New("title is required"), http.StatusBadRequest)
			return
		}
		if !req.Type.Valid() {
			validation.WriteError(w, errors.New("type must be one of movie, tv, book"), http.StatusBadRequest)
			return
		}

		generated, err := svc.Generate(r.Context(), req.Title, req.Type)
		if err != nil {
			writeServiceError(w, err, "generate image")
			return
		}

		metrics.SharedImageReuses.WithLabelValues(generated.Source).Inc()
		validation.WriteJSON(w, generated, http.StatusOK)
	}
}

// HandleMetadataSearch suggests title metadata from TMDb. Without an API
// key the feature reports itself disabled.
func HandleMetadataSearch(client *metadata.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if client == nil {
			validation.WriteError(w, errors.New("metadata lookup is not configured"), http.StatusServiceUnavailable)
			return
		}

		title := strings.TrimSpace(r.URL.Query().Get("title"))
		if title == "" {
			validation.WriteError(w, errors.New("title is required"), http.StatusBadRequest)
			return
		}
		mediaType, err := mediaTypeParam(r)
		if err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}
		if mediaType == models.MediaTypeBook {
			validation.WriteError(w, errors.New("no metadata source for books"), http.StatusBadRequest)
			return
		}

		suggestions, err := client.Search(r.Context(), title, mediaType)
		if err != nil {
			writeServiceError(w, err, "metadata search")
			return
		}
		validation.WriteJSON(w, suggestions, http.StatusOK)
	}
}
