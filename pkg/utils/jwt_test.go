package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgspace-backend/pkg/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestJWTService_RoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	svc := NewJWTService("secret", 7*24*time.Hour).WithClock(fixedClock(now))

	token, exp, err := svc.GenerateSessionToken(SessionSubject{
		UserID: 9, TelegramID: 42, SpaceID: 3, ChatID: -100555, Role: models.RoleMember,
	})
	require.NoError(t, err)
	assert.Equal(t, now.Add(7*24*time.Hour), exp)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	uid, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(9), uid)
	assert.Equal(t, int64(42), claims.TelegramID)
	assert.Equal(t, int64(3), claims.SpaceID)
	assert.Equal(t, int64(-100555), claims.ChatID)
	assert.Equal(t, models.RoleMember, claims.Role)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
}

func TestJWTService_Expired(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	svc := NewJWTService("secret", time.Hour).WithClock(fixedClock(issued))
	token, _, err := svc.GenerateSessionToken(SessionSubject{UserID: 1, Role: models.RoleMember})
	require.NoError(t, err)

	later := svc.WithClock(fixedClock(issued.Add(2 * time.Hour)))
	_, err = later.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_WrongSecret(t *testing.T) {
	token, _, err := NewJWTService("one", time.Hour).GenerateSessionToken(SessionSubject{UserID: 1})
	require.NoError(t, err)

	_, err = NewJWTService("two", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsNoneAlg(t *testing.T) {
	claims := &models.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTService("secret", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsOtherHMACAlg(t *testing.T) {
	claims := &models.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTService("secret", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsBadSubject(t *testing.T) {
	claims := &models.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTService("secret", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
