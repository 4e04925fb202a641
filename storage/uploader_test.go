package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeamLogoKey(t *testing.T) {
	key, err := TeamLogoKey("team_1", "image/PNG")
	require.NoError(t, err)
	assert.Equal(t, "teams/team_1/logo.png", key)

	key, err = TeamLogoKey("team_1", "image/jpeg; charset=binary")
	require.NoError(t, err)
	assert.Equal(t, "teams/team_1/logo.jpg", key)

	_, err = TeamLogoKey("team_1", "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedImageType)
}

func TestPublicURL(t *testing.T) {
	u, err := NewCloudflareR2Uploader(context.Background(), CloudflareR2UploaderConfig{
		AccountID:       "acc",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
		BucketName:      "logos",
		PublicBaseURL:   "https://cdn.example.com/fragshub",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/fragshub/teams/team_1/logo.png", u.GetPublicURL("teams/team_1/logo.png"))
	assert.Equal(t, "https://cdn.example.com/fragshub/teams/team_1/logo.png", u.GetPublicURL("/teams/team_1/logo.png"))
	assert.Empty(t, u.GetPublicURL(""))
}

func TestNewUploaderRequiresAllFields(t *testing.T) {
	_, err := NewCloudflareR2Uploader(context.Background(), CloudflareR2UploaderConfig{AccountID: "acc"})
	assert.Error(t, err)
}
