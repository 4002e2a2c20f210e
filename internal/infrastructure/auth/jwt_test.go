package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/identity"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestJWTService(clock shared.Clock) *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                testSecret,
		Issuer:                "test-issuer",
		AccessTokenExpiration: 15 * time.Minute,
	}, WithClock(clock))
}

func TestNewJWTService_DefaultsExpiration(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "s"})
	assert.Equal(t, time.Hour, svc.expiration)
}

func TestJWTService_RoundTrip(t *testing.T) {
	clock := shared.NewFixedClock(time.Now())
	svc := newTestJWTService(clock)
	branch := uuid.New()

	t.Run("branch scoped actor", func(t *testing.T) {
		actor := identity.NewBranchActor(uuid.New(), &branch)
		token, expiresAt, err := svc.GenerateAccessToken(actor)
		require.NoError(t, err)
		assert.Equal(t, clock.Now().Add(15*time.Minute), expiresAt)

		got, err := svc.Authenticate(token)
		require.NoError(t, err)
		assert.Equal(t, actor.ID, got.ID)
		assert.Equal(t, identity.RoleBranchScoped, got.Role)
		require.NotNil(t, got.BranchID)
		assert.Equal(t, branch, *got.BranchID)
	})

	t.Run("unrestricted actor without branch", func(t *testing.T) {
		actor := identity.NewUnrestrictedActor(uuid.New(), nil)
		token, _, err := svc.GenerateAccessToken(actor)
		require.NoError(t, err)

		claims, err := svc.ValidateAccessToken(token)
		require.NoError(t, err)
		assert.Empty(t, claims.BranchID)
		assert.Equal(t, "test-issuer", claims.Issuer)

		got, err := claims.Actor()
		require.NoError(t, err)
		assert.True(t, got.IsUnrestricted())
		assert.Nil(t, got.BranchID)
	})
}

func TestJWTService_ValidateAccessToken(t *testing.T) {
	clock := shared.NewFixedClock(time.Now())
	svc := newTestJWTService(clock)
	actor := identity.NewUnrestrictedActor(uuid.New(), nil)

	t.Run("expired", func(t *testing.T) {
		c := shared.NewFixedClock(clock.Now())
		s := newTestJWTService(c)
		token, _, err := s.GenerateAccessToken(actor)
		require.NoError(t, err)

		c.Advance(16 * time.Minute)
		_, err = s.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "another-secret-key-of-32-characters", Issuer: "test-issuer"}, WithClock(clock))
		token, _, err := other.GenerateAccessToken(actor)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: testSecret, Issuer: "someone-else"}, WithClock(clock))
		token, _, err := other.GenerateAccessToken(actor)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateAccessToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm rejected", func(t *testing.T) {
		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: actor.ID.String(), Issuer: "test-issuer"}, Role: "UNRESTRICTED"}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestClaims_Actor(t *testing.T) {
	id := uuid.New().String()

	tests := []struct {
		name    string
		claims  Claims
		wantErr error
	}{
		{"missing subject", Claims{Role: "UNRESTRICTED"}, ErrMissingSubject},
		{"unknown role", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: id}, Role: "ADMIN"}, ErrUnknownRole},
		{"bad branch", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: id}, Role: "branch_scoped", BranchID: "nope"}, ErrInvalidBranchID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.claims.Actor()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("role is case-insensitive", func(t *testing.T) {
		c := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: id}, Role: "branch_scoped"}
		actor, err := c.Actor()
		require.NoError(t, err)
		assert.Equal(t, identity.RoleBranchScoped, actor.Role)
		assert.False(t, actor.HasBranch())
	})
}
