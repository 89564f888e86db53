package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/shelfmark/shelfmark/lib/auth"
	"github.com/shelfmark/shelfmark/lib/follow"
	"github.com/shelfmark/shelfmark/lib/media"
	"github.com/shelfmark/shelfmark/lib/profiles"
	"github.com/shelfmark/shelfmark/lib/validation"
	"github.com/shelfmark/shelfmark/models"
)

// writeServiceError maps service errors onto the response taxonomy:
// refused-before-store auth errors, client validation errors, not-found,
// and everything else as a logged generic backend error with no partial
// state mutated.
func writeServiceError(w http.ResponseWriter, err error, context string) {
	switch {
	case errors.Is(err, media.ErrNotAuthenticated) || errors.Is(err, follow.ErrNotAuthenticated):
		validation.WriteError(w, err, http.StatusUnauthorized)
	case errors.Is(err, media.ErrNotFound) || errors.Is(err, profiles.ErrNotFound):
		validation.WriteError(w, err, http.StatusNotFound)
	case errors.Is(err, media.ErrValidation) || errors.Is(err, follow.ErrSelfFollow):
		validation.WriteError(w, err, http.StatusBadRequest)
	default:
		slog.Error("Request failed", slog.String("context", context), slog.Any("error", err))
		validation.WriteError(w, errors.New("something went wrong, please try again"), http.StatusInternalServerError)
	}
}

// collectionResponse is a loaded collection plus derived per-type counts.
type collectionResponse struct {
	Items  []models.MediaItemView `json:"items"`
	Counts media.Counts           `json:"counts"`
}

func toCollection(items []models.MediaItem) collectionResponse {
	views := make([]models.MediaItemView, 0, len(items))
	for i := range items {
		views = append(views, items[i].View())
	}
	return collectionResponse{Items: views, Counts: media.CountByType(items)}
}

// HandleListMedia serves the authenticated user's own collection.
func HandleListMedia(svc *media.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserID(r.Context())
		items, err := svc.List(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err, "list media")
			return
		}
		validation.WriteJSON(w, toCollection(items), http.StatusOK)
	}
}

// HandleAddMedia validates and creates a new item for the authenticated
// user.
func HandleAddMedia(svc *media.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserID(r.Context())

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			validation.WriteError(w, errors.New("failed to read request body"), http.StatusBadRequest)
			return
		}
		if err := validation.ValidateMediaItem(body); err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		var in media.Input
		if err := json.Unmarshal(body, &in); err != nil {
			validation.WriteError(w, fmt.Errorf("invalid JSON: %w", err), http.StatusBadRequest)
			return
		}

		item, err := svc.Add(r.Context(), userID, in)
		if err != nil {
			writeServiceError(w, err, "add media")
			return
		}

		validation.WriteJSON(w, map[string]interface{}{
			"item":    item.View(),
			"message": fmt.Sprintf("Added %q to your list!", item.Title),
		}, http.StatusCreated)
	}
}

// HandleGetMedia serves a single item from the authenticated user's
// collection.
func HandleGetMedia(svc *media.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserID(r.Context())
		item, err := svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err, "get media")
			return
		}
		validation.WriteJSON(w, item.View(), http.StatusOK)
	}
}

// HandleUpdateMedia merges a partial update onto an existing item.
func HandleUpdateMedia(svc *media.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserID(r.Context())

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			validation.WriteError(w, errors.New("failed to read request body"), http.StatusBadRequest)
			return
		}
		if err := validation.ValidateMediaItemUpdate(body); err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		var up media.Update
		if err := json.Unmarshal(body, &up); err != nil {
			validation.WriteError(w, fmt.Errorf("invalid JSON: %w", err), http.StatusBadRequest)
			return
		}

		item, err := svc.UpdateItem(r.Context(), userID, chi.URLParam(r, "id"), up)
		if err != nil {
			writeServiceError(w, err, "update media")
			return
		}

		validation.WriteJSON(w, map[string]interface{}{
			"item":    item.View(),
			"message": "Updated successfully!",
		}, http.StatusOK)
	}
}

// HandleDeleteMedia removes an item and confirms with the deleted title.
func HandleDeleteMedia(svc *media.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserID(r.Context())
		title, err := svc.Delete(r.Context(), userID, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err, "delete media")
			return
		}
		validation.WriteJSON(w, map[string]string{
			"message": fmt.Sprintf("Removed %q from your list", title),
		}, http.StatusOK)
	}
}

// HandleUserMedia serves any user's collection read-only. Anonymous
// visitors see it too; edit affordances are a client concern.
func HandleUserMedia(svc *media.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeServiceError(w, err, "list user media")
			return
		}
		validation.WriteJSON(w, toCollection(items), http.StatusOK)
	}
}
