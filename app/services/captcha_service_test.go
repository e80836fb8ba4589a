package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptchaService_GenerateAndVerify(t *testing.T) {
	store := NewSecureStore(NewMemoryStoreBackend(), SecureStoreOptions{})
	service := NewCaptchaServiceRotate(store, time.Minute, 5, 160)
	ctx := context.Background()

	challenge, err := service.GenerateRotate(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, challenge.ID)
	assert.NotEmpty(t, challenge.MasterImageBase64)
	assert.NotEmpty(t, challenge.ThumbImageBase64)

	var target int
	ok, err := store.GetItem(ctx, captchaKey(challenge.ID), &target)
	require.NoError(t, err)
	require.True(t, ok)

	// the thumbnail is rotated by target; the answer turns it back upright
	answer := float64(360 - target)
	valid, err := service.VerifyRotate(ctx, challenge.ID, answer)
	require.NoError(t, err)
	assert.True(t, valid)

	// challenges are single use
	valid, err = service.VerifyRotate(ctx, challenge.ID, answer)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestCaptchaService_UnknownChallenge(t *testing.T) {
	store := NewSecureStore(NewMemoryStoreBackend(), SecureStoreOptions{})
	service := NewCaptchaServiceRotate(store, time.Minute, 5, 160)

	valid, err := service.VerifyRotate(context.Background(), "does-not-exist", 90)
	require.NoError(t, err)
	assert.False(t, valid)

	valid, err = service.VerifyRotate(context.Background(), "", 90)
	require.NoError(t, err)
	assert.False(t, valid)
}
