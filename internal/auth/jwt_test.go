package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-appointments/internal/apperr"
	"github.com/hackgods/doctor-appointments/internal/appointment"
	"github.com/hackgods/doctor-appointments/internal/auth"
)

const secret = "test-secret"

func TestIssueAndParse(t *testing.T) {
	userID := uuid.New()

	token, err := auth.IssueToken(secret, userID, appointment.RoleDoctor, time.Minute)
	require.NoError(t, err)

	claims, err := auth.ParseToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, appointment.RoleDoctor, claims.Role)

	p, err := claims.Principal()
	require.NoError(t, err)
	doctor, err := appointment.AsDoctor(p)
	require.NoError(t, err)
	assert.Equal(t, userID, doctor.ID)
}

func TestParseTokenRejects(t *testing.T) {
	userID := uuid.New()

	t.Run("wrong secret", func(t *testing.T) {
		token, err := auth.IssueToken("other", userID, appointment.RolePatient, time.Minute)
		require.NoError(t, err)

		_, err = auth.ParseToken(token, secret)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := auth.IssueToken(secret, userID, appointment.RolePatient, -time.Minute)
		require.NoError(t, err)

		_, err = auth.ParseToken(token, secret)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := auth.ParseToken("not-a-token", secret)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.Claims{UserID: userID.String(), Role: appointment.RolePatient})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = auth.ParseToken(signed, secret)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestClaimsPrincipal(t *testing.T) {
	claims := &auth.Claims{UserID: "not-a-uuid", Role: appointment.RolePatient}
	_, err := claims.Principal()
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	claims = &auth.Claims{UserID: uuid.NewString(), Role: "admin"}
	_, err = claims.Principal()
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))
}
