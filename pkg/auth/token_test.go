package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deligma/pkg/config"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "deligma", ExpirationMinutes: 60}

func TestMintAndParseRoundTrip(t *testing.T) {
	id := uuid.New()
	token, err := MintAccessToken(testCfg, time.Now(), AccessTokenPayload{AdminID: id, Username: "root", Role: RoleSuperAdmin})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testCfg, token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.AdminID)
	assert.Equal(t, "root", claims.Username)
	assert.Equal(t, RoleSuperAdmin, claims.Role)
}

func TestMintRejectsUnknownRole(t *testing.T) {
	_, err := MintAccessToken(testCfg, time.Now(), AccessTokenPayload{AdminID: uuid.New(), Role: "editor"})
	assert.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{AdminID: uuid.New(), Role: RoleAdmin})
	require.NoError(t, err)

	_, err = ParseAccessToken(testCfg, token)
	assert.Error(t, err)
}

func TestParseRejectsWrongSecretAndIssuer(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now(), AccessTokenPayload{AdminID: uuid.New(), Role: RoleAdmin})
	require.NoError(t, err)

	_, err = ParseAccessToken(config.JWTConfig{Secret: "other", Issuer: "deligma"}, token)
	assert.Error(t, err)

	_, err = ParseAccessToken(config.JWTConfig{Secret: "secret", Issuer: "someone-else"}, token)
	assert.Error(t, err)
}
