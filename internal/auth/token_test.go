package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidencevault/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	iss := NewTokenIssuer(testSecret, 8*time.Hour)
	u := models.User{ID: "u-1", Role: models.RoleOfficer}

	raw, exp, err := iss.Issue(u)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), exp, 5*time.Second)

	claims, err := iss.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleOfficer, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenExpires(t *testing.T) {
	iss := NewTokenIssuer(testSecret, 8*time.Hour)
	raw, _, err := iss.Issue(models.User{ID: "u-1", Role: models.RoleAdmin})
	require.NoError(t, err)

	iss.now = func() time.Time { return time.Now().Add(8*time.Hour + time.Minute) }
	_, err = iss.Parse(raw)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenRejectsTamperingAndForeignKeys(t *testing.T) {
	iss := NewTokenIssuer(testSecret, time.Hour)
	raw, _, err := iss.Issue(models.User{ID: "u-1", Role: models.RoleOfficer})
	require.NoError(t, err)

	other := NewTokenIssuer(strings.Repeat("x", 32), time.Hour)
	_, err = other.Parse(raw)
	require.ErrorIs(t, err, ErrTokenInvalid)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	_, err = iss.Parse(tampered)
	require.ErrorIs(t, err, ErrTokenInvalid)

	for _, junk := range []string{"", "abc", "a.b.c"} {
		_, err = iss.Parse(junk)
		require.ErrorIs(t, err, ErrTokenInvalid)
	}
}

func TestTokensAreUnique(t *testing.T) {
	iss := NewTokenIssuer(testSecret, time.Hour)
	u := models.User{ID: "u-1", Role: models.RoleOfficer}
	a, _, err := iss.Issue(u)
	require.NoError(t, err)
	b, _, err := iss.Issue(u)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
