package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summitsafeguard/go-tracker-server/internal/model"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("gunung-gede-123")
	require.NoError(t, err)
	assert.NotEqual(t, "gunung-gede-123", hash)

	assert.True(t, VerifyPassword(hash, "gunung-gede-123"))
	assert.False(t, VerifyPassword(hash, "wrong"))
	assert.False(t, VerifyPassword("not-a-hash", "gunung-gede-123"))
}

func TestTokenRoundTrip(t *testing.T) {
	account := model.Account{
		ID:           7,
		Username:     "keluarga_02",
		Role:         model.RoleViewer,
		BoundHikerID: "pendaki_02",
	}

	token, err := IssueToken("secret", account)
	require.NoError(t, err)

	identity, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), identity.AccountID)
	assert.Equal(t, "keluarga_02", identity.Username)
	assert.Equal(t, model.RoleViewer, identity.Role)
	assert.Equal(t, "pendaki_02", identity.BoundHikerID)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken("secret", model.Account{ID: 1, Username: "ops", Role: model.RoleRescuer})
	require.NoError(t, err)

	_, err = ParseToken("other-secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := ParseToken("secret", "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
