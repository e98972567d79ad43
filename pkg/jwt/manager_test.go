package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789"

func TestManager_GenerateAndVerify(t *testing.T) {
	m := NewManager(testSecret, "messenger", time.Hour)

	token, err := m.Generate("42", "tester")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.GetUserID())
	assert.Equal(t, "tester", claims.Nickname)
}

func TestManager_Expired(t *testing.T) {
	m := NewManager(testSecret, "", time.Minute)
	token, err := m.Generate("42", "")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManager_RejectsForeignTokens(t *testing.T) {
	m := NewManager(testSecret, "messenger", time.Hour)

	other, err := NewManager("another-secret-0123456789", "messenger", time.Hour).Generate("42", "")
	require.NoError(t, err)
	_, err = m.Verify(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewManager(testSecret, "elsewhere", time.Hour).Generate("42", "")
	require.NoError(t, err)
	_, err = m.Verify(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaims_CommunityFormat(t *testing.T) {
	m := NewManager(testSecret, "", 0)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{MbID: "admin"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.GetUserID())

	// no user id in any format
	empty, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = m.Verify(empty)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
