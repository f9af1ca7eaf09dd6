// Package users is account moderation: banning and unbanning viewers.
package users

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/auth"
	"github.com/example/animestream/internal/platform/docstore"
	"github.com/example/animestream/internal/platform/normalize"
)

const Collection = "users"

// Ban is the moderation state of one account.
type Ban struct {
	UserID   string  `json:"userId"`
	Banned   bool    `json:"banned"`
	BannedAt string  `json:"bannedAt,omitempty"`
	BannedBy *string `json:"bannedBy,omitempty"`
	Reason   *string `json:"banReason,omitempty"`
}

type Moderator struct {
	store docstore.Store
	log   *zap.Logger
	owner string
}

// NewModerator returns a Moderator that refuses to ban ownerID.
func NewModerator(store docstore.Store, log *zap.Logger, ownerID string) *Moderator {
	return &Moderator{store: store, log: log, owner: strings.TrimSpace(ownerID)}
}

// Ban marks userID as banned. The owner account can never be banned, and
// an admin cannot ban themselves.
func (m *Moderator) Ban(ctx context.Context, admin auth.Session, userID, reason string) (Ban, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Ban{}, apperr.InvalidArgument("user id is required", map[string]string{"user_id": "required"})
	}
	if !admin.IsAdmin() {
		return Ban{}, apperr.PermissionDenied("admin role required")
	}
	if m.owner != "" && userID == m.owner {
		return Ban{}, apperr.PermissionDenied("the owner account cannot be banned")
	}
	if userID == admin.UserID {
		return Ban{}, apperr.PermissionDenied("you cannot ban yourself")
	}
	data := map[string]any{
		"banned":    true,
		"bannedAt":  docstore.ServerTimestamp,
		"bannedBy":  admin.UserID,
		"banReason": normalize.NullableString(&reason),
	}
	if err := m.store.Set(ctx, Collection, userID, data, docstore.MergeAll); err != nil {
		m.log.Error("ban user failed", zap.String("op", "banUser"), zap.String("user_id", userID), zap.Error(err))
		return Ban{}, apperr.Wrap("banUser", err)
	}
	m.log.Info("user banned", zap.String("user_id", userID), zap.String("by", admin.UserID))
	return m.Status(ctx, userID)
}

// Unban lifts a ban. Unbanning an account that was never banned is a no-op.
func (m *Moderator) Unban(ctx context.Context, admin auth.Session, userID string) (Ban, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Ban{}, apperr.InvalidArgument("user id is required", map[string]string{"user_id": "required"})
	}
	if !admin.IsAdmin() {
		return Ban{}, apperr.PermissionDenied("admin role required")
	}
	data := map[string]any{
		"banned":    false,
		"bannedAt":  docstore.DeleteField,
		"bannedBy":  docstore.DeleteField,
		"banReason": docstore.DeleteField,
	}
	if err := m.store.Set(ctx, Collection, userID, data, docstore.MergeAll); err != nil {
		m.log.Error("unban user failed", zap.String("op", "unbanUser"), zap.String("user_id", userID), zap.Error(err))
		return Ban{}, apperr.Wrap("unbanUser", err)
	}
	return Ban{UserID: userID}, nil
}

func (m *Moderator) Status(ctx context.Context, userID string) (Ban, error) {
	snap, err := m.store.Get(ctx, Collection, userID)
	if docstore.IsNotFound(err) {
		return Ban{UserID: userID}, nil
	}
	if err != nil {
		m.log.Error("load user failed", zap.String("op", "banStatus"), zap.String("user_id", userID), zap.Error(err))
		return Ban{}, apperr.Wrap("banStatus", err)
	}
	b := Ban{UserID: userID, BannedAt: normalize.Timestamp(snap.Data["bannedAt"])}
	b.Banned, _ = snap.Data["banned"].(bool)
	if s, ok := snap.Data["bannedBy"].(string); ok {
		b.BannedBy = &s
	}
	if s, ok := snap.Data["banReason"].(string); ok {
		b.Reason = &s
	}
	return b, nil
}

// IsBanned satisfies comments.BanChecker.
func (m *Moderator) IsBanned(ctx context.Context, userID string) (bool, error) {
	b, err := m.Status(ctx, userID)
	return b.Banned, err
}
