package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shelfmark/shelfmark/lib/auth"
	"github.com/shelfmark/shelfmark/lib/follow"
	"github.com/shelfmark/shelfmark/lib/profiles"
	"github.com/shelfmark/shelfmark/lib/validation"
	"github.com/shelfmark/shelfmark/models"
)

// HandleProfile serves a profile page payload for any user, with follow
// counts and the viewer's follow state when signed in.
func HandleProfile(svc *profiles.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID, _ := auth.UserID(r.Context())
		view, err := svc.GetView(r.Context(), chi.URLParam(r, "userID"), viewerID)
		if err != nil {
			writeServiceError(w, err, "get profile")
			return
		}
		validation.WriteJSON(w, view, http.StatusOK)
	}
}

// HandleUpdateProfile applies the edit-profile form to the caller's own
// profile.
func HandleUpdateProfile(svc *profiles.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserID(r.Context())

		var up profiles.Update
		if err := decodeJSON(w, r, &up); err != nil {
			return
		}

		profile, err := svc.Update(r.Context(), userID, up)
		if err != nil {
			writeServiceError(w, err, "update profile")
			return
		}
		validation.WriteJSON(w, profile, http.StatusOK)
	}
}

// HandleSearchUsers is the search-as-you-type username lookup.
func HandleSearchUsers(svc *profiles.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			validation.WriteJSON(w, []models.Profile{}, http.StatusOK)
			return
		}

		results, err := svc.Search(r.Context(), query)
		if err != nil {
			writeServiceError(w, err, "search users")
			return
		}
		validation.WriteJSON(w, results, http.StatusOK)
	}
}

// HandleFollow inserts a follow edge from the caller to the target user.
// Following someone twice reports success without a second edge.
func HandleFollow(svc *follow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID, _ := auth.UserID(r.Context())
		if err := svc.Follow(r.Context(), viewerID, chi.URLParam(r, "userID")); err != nil {
			writeServiceError(w, err, "follow user")
			return
		}
		validation.WriteJSON(w, map[string]string{"message": "Started following user"}, http.StatusOK)
	}
}

// HandleUnfollow removes the caller's follow edge to the target user.
func HandleUnfollow(svc *follow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID, _ := auth.UserID(r.Context())
		if err := svc.Unfollow(r.Context(), viewerID, chi.URLParam(r, "userID")); err != nil {
			writeServiceError(w, err, "unfollow user")
			return
		}
		validation.WriteJSON(w, map[string]string{"message": "Stopped following user"}, http.StatusOK)
	}
}

// HandleFollowList serves the followers or following list for a user,
// each entry annotated with the viewer's own follow state so per-row
// follow buttons render without further lookups.
func HandleFollowList(svc *follow.Service, direction follow.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID, _ := auth.UserID(r.Context())
		list, err := svc.List(r.Context(), chi.URLParam(r, "userID"), direction, viewerID)
		if err != nil {
			writeServiceError(w, err, "list "+string(direction))
			return
		}
		validation.WriteJSON(w, list, http.StatusOK)
	}
}
