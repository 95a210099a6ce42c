package services

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallTokenRoundTrip(t *testing.T) {
	viper.Reset()
	viper.Set("security.call_token_secret", "test-secret")

	tk, err := CreateCallToken("room-1", "doctor-1")
	require.NoError(t, err)

	claims, err := ParseCallToken(tk)
	require.NoError(t, err)
	assert.Equal(t, "room-1", claims.RoomID)
	assert.Equal(t, "doctor-1", claims.ParticipantID)
}

func TestCallTokenRejectsForeignSecret(t *testing.T) {
	viper.Reset()
	viper.Set("security.call_token_secret", "test-secret")

	tk, err := CreateCallToken("room-1", "doctor-1")
	require.NoError(t, err)

	viper.Set("security.call_token_secret", "another-secret")
	_, err = ParseCallToken(tk)
	assert.Error(t, err)
}

func TestCallTokenExpires(t *testing.T) {
	viper.Reset()
	viper.Set("security.call_token_secret", "test-secret")
	viper.Set("calling.token_duration", -time.Minute)

	// Negative configured durations fall back to the default lifetime,
	// so the token is still valid.
	tk, err := CreateCallToken("room-1", "doctor-1")
	require.NoError(t, err)
	_, err = ParseCallToken(tk)
	assert.NoError(t, err)
}
