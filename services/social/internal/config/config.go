package config

import (
	"github.com/example/animestream/internal/platform/config"
	"github.com/example/animestream/services/social/internal/comments"
)

type SocialConfig struct {
	App config.AppConfig

	// NATSURL enables analytics events.
	NATSURL string
	// OwnerUserID is the account that can never be banned.
	OwnerUserID      string
	CommentMaxLength int
	QueryMaxResults  int

	// Signed-in callers get WriteBurst requests, refilled at
	// WriteRatePerMinute.
	WriteRatePerMinute int
	WriteBurst         int
}

func LoadSocial() (SocialConfig, error) {
	app, err := config.Load()
	if err != nil {
		return SocialConfig{}, err
	}
	return SocialConfig{
		App:              app,
		NATSURL:          config.Env("NATS_URL"),
		OwnerUserID:      config.Env("OWNER_USER_ID"),
		CommentMaxLength: config.EnvInt("COMMENT_MAX_LENGTH", comments.DefaultMaxLength),
		QueryMaxResults:  config.EnvInt("QUERY_MAX_RESULTS", 500),

		WriteRatePerMinute: config.EnvInt("WRITE_RATE_PER_MINUTE", 30),
		WriteBurst:         config.EnvInt("WRITE_BURST", 10),
	}, nil
}
