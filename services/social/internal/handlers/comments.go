package handlers

import (
	"net/http"

	"github.com/example/animestream/internal/platform/analytics"
	"github.com/example/animestream/internal/platform/api"
	"github.com/example/animestream/internal/platform/httpserver"
	"github.com/example/animestream/services/social/internal/comments"
)

type postCommentRequest struct {
	Text     string  `json:"text"`
	ParentID *string `json:"parentId,omitempty"`
}

type editCommentRequest struct {
	Text string `json:"text"`
}

// reactedComment is a comment as seen by the viewer who just reacted to it.
type reactedComment struct {
	comments.Comment
	Reaction string `json:"reaction"`
}

type deleteResponse struct {
	ID         string `json:"id"`
	Tombstoned bool   `json:"tombstoned"`
}

// ListComments handles GET /v1/anime/{anime_id}/episodes/{episode_id}/comments
func ListComments(cs *comments.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		animeID, ok := pathParam(w, r, rid, "anime_id")
		if !ok {
			return
		}
		episodeID, ok := pathParam(w, r, rid, "episode_id")
		if !ok {
			return
		}
		list, err := cs.ListTopLevel(r.Context(), animeID, episodeID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"comments": list})
	}
}

// ListReplies handles GET /v1/comments/{comment_id}/replies
func ListReplies(cs *comments.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		commentID, ok := pathParam(w, r, rid, "comment_id")
		if !ok {
			return
		}
		list, err := cs.ListReplies(r.Context(), commentID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"replies": list})
	}
}

// PostComment handles POST /v1/anime/{anime_id}/episodes/{episode_id}/comments
func PostComment(cs *comments.Service, events *analytics.Publisher) http.HandlerFunc {
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
		episodeID, ok := pathParam(w, r, rid, "episode_id")
		if !ok {
			return
		}
		var req postCommentRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		c, err := cs.Add(r.Context(), who, comments.NewComment{
			AnimeID:   animeID,
			EpisodeID: episodeID,
			Text:      req.Text,
			ParentID:  req.ParentID,
		})
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		events.Publish(analytics.CommentPosted, who.UserID, map[string]any{
			"anime_id":   c.AnimeID,
			"episode_id": c.EpisodeID,
			"reply":      c.ParentID != nil,
		})
		api.WriteJSON(w, http.StatusCreated, c)
	}
}

// EditComment handles PATCH /v1/comments/{comment_id}
func EditComment(cs *comments.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		who, ok := session(w, r, rid)
		if !ok {
			return
		}
		commentID, ok := pathParam(w, r, rid, "comment_id")
		if !ok {
			return
		}
		var req editCommentRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		c, err := cs.Edit(r.Context(), who, commentID, req.Text)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, c)
	}
}

// DeleteComment handles DELETE /v1/comments/{comment_id}
func DeleteComment(cs *comments.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		who, ok := session(w, r, rid)
		if !ok {
			return
		}
		commentID, ok := pathParam(w, r, rid, "comment_id")
		if !ok {
			return
		}
		soft, err := cs.Delete(r.Context(), who, commentID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, deleteResponse{ID: commentID, Tombstoned: soft})
	}
}

// React handles POST /v1/comments/{comment_id}/like and /dislike.
func React(cs *comments.Service, reaction comments.Reaction) http.HandlerFunc {
	toggle := cs.ToggleLike
	if reaction == comments.Dislike {
		toggle = cs.ToggleDislike
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		who, ok := session(w, r, rid)
		if !ok {
			return
		}
		commentID, ok := pathParam(w, r, rid, "comment_id")
		if !ok {
			return
		}
		c, err := toggle(r.Context(), commentID, who.UserID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, reactedComment{Comment: c, Reaction: c.ReactionOf(who.UserID).String()})
	}
}
