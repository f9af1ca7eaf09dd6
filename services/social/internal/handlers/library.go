package handlers

import (
	"net/http"

	"github.com/example/animestream/internal/platform/analytics"
	"github.com/example/animestream/internal/platform/api"
	"github.com/example/animestream/internal/platform/httpserver"
	"github.com/example/animestream/services/social/internal/library"
)

type membershipResponse struct {
	AnimeID string `json:"animeId"`
	Member  bool   `json:"member"`
}

// ListMembers handles GET /v1/me/{set}, newest first.
func ListMembers(set *library.Set) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		who, ok := session(w, r, rid)
		if !ok {
			return
		}
		entries, err := set.Entries(r.Context(), who.UserID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{set.Name(): entries})
	}
}

// CheckMember handles GET /v1/me/{set}/{anime_id}
func CheckMember(set *library.Set) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		who, ok := session(w, r, rid)
		if !ok {
			return
		}
		animeID, ok := pathParam(w, r, rid, "anime_id")
		if !ok {
			return
		}
		member, err := set.Contains(r.Context(), who.UserID, animeID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, membershipResponse{AnimeID: animeID, Member: member})
	}
}

// PutMember handles PUT /v1/me/{set}/{anime_id}
func PutMember(set *library.Set, events *analytics.Publisher) http.HandlerFunc {
	return changeMember(set, events, true)
}

// RemoveMember handles DELETE /v1/me/{set}/{anime_id}
func RemoveMember(set *library.Set, events *analytics.Publisher) http.HandlerFunc {
	return changeMember(set, events, false)
}

// ToggleMember handles POST /v1/me/{set}/{anime_id}/toggle
func ToggleMember(set *library.Set, events *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		who, ok := session(w, r, rid)
		if !ok {
			return
		}
		animeID, ok := pathParam(w, r, rid, "anime_id")
		if !ok {
			return
		}
		member, err := set.Toggle(r.Context(), who.UserID, animeID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		publishListChange(events, set, who.UserID, animeID, member)
		api.WriteJSON(w, http.StatusOK, membershipResponse{AnimeID: animeID, Member: member})
	}
}

func publishListChange(events *analytics.Publisher, set *library.Set, userID, animeID string, added bool) {
	events.Publish(analytics.ListChanged, userID, map[string]any{
		"list":     set.Name(),
		"anime_id": animeID,
		"added":    added,
	})
}

func changeMember(set *library.Set, events *analytics.Publisher, add bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		who, ok := session(w, r, rid)
		if !ok {
			return
		}
		animeID, ok := pathParam(w, r, rid, "anime_id")
		if !ok {
			return
		}
		var err error
		if add {
			err = set.Add(r.Context(), who.UserID, animeID)
		} else {
			err = set.Remove(r.Context(), who.UserID, animeID)
		}
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		publishListChange(events, set, who.UserID, animeID, add)
		api.WriteJSON(w, http.StatusOK, membershipResponse{AnimeID: animeID, Member: add})
	}
}
