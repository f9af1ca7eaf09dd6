package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSocial(t *testing.T) {
	t.Setenv("SERVICE_NAME", "social")
	t.Setenv("DATASTORE", "memory")
	t.Setenv("APP_ENV", "development")
	t.Setenv("OWNER_USER_ID", " owner-1 ")
	t.Setenv("COMMENT_MAX_LENGTH", "")
	t.Setenv("QUERY_MAX_RESULTS", "")
	t.Setenv("WRITE_RATE_PER_MINUTE", "")
	t.Setenv("WRITE_BURST", "")

	cfg, err := LoadSocial()
	require.NoError(t, err)
	assert.Equal(t, "owner-1", cfg.OwnerUserID)
	assert.Equal(t, 2000, cfg.CommentMaxLength)
	assert.Equal(t, 500, cfg.QueryMaxResults)
	assert.Equal(t, 30, cfg.WriteRatePerMinute)
	assert.Equal(t, 10, cfg.WriteBurst)

	t.Setenv("COMMENT_MAX_LENGTH", "280")
	cfg, err = LoadSocial()
	require.NoError(t, err)
	assert.Equal(t, 280, cfg.CommentMaxLength)
}

func TestLoadSocialRejectsMemoryInProduction(t *testing.T) {
	t.Setenv("SERVICE_NAME", "social")
	t.Setenv("DATASTORE", "memory")
	t.Setenv("APP_ENV", "production")
	_, err := LoadSocial()
	assert.Error(t, err)
}
