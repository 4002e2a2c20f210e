package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/identity"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingSubject   = errors.New("missing sub in claims")
	ErrUnknownRole      = errors.New("unknown role in claims")
	ErrInvalidBranchID  = errors.New("invalid branch_id in claims")
)

// Claims carries the caller identity: sub is the actor ID
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	BranchID string `json:"branch_id,omitempty"`
}

// Actor converts the claims into the domain actor
func (c *Claims) Actor() (identity.Actor, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil || id == uuid.Nil {
		return identity.Actor{}, ErrMissingSubject
	}
	role, err := identity.ParseRole(c.Role)
	if err != nil {
		return identity.Actor{}, ErrUnknownRole
	}

	var branch *uuid.UUID
	if c.BranchID != "" {
		b, err := uuid.Parse(c.BranchID)
		if err != nil {
			return identity.Actor{}, ErrInvalidBranchID
		}
		branch = &b
	}
	return identity.Actor{ID: id, Role: role, BranchID: branch}, nil
}

// JWTService issues and verifies HS256 access tokens
type JWTService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
	clock      shared.Clock
}

// Option configures the JWTService
type Option func(*JWTService)

// WithClock sets the time source used for issuing and expiry checks
func WithClock(c shared.Clock) Option {
	return func(s *JWTService) { s.clock = c }
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig, opts ...Option) *JWTService {
	expiration := cfg.AccessTokenExpiration
	if expiration <= 0 {
		expiration = time.Hour
	}
	s := &JWTService{
		secret:     []byte(cfg.Secret),
		expiration: expiration,
		issuer:     cfg.Issuer,
		clock:      shared.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateAccessToken signs a token for actor and returns it with its expiry
func (s *JWTService) GenerateAccessToken(actor identity.Actor) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.expiration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   actor.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: actor.Role.String(),
	}
	if actor.HasBranch() {
		claims.BranchID = actor.BranchID.String()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateAccessToken verifies signature, issuer and validity window
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, parserOpts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// Authenticate validates the token and resolves the actor it names
func (s *JWTService) Authenticate(tokenString string) (identity.Actor, error) {
	claims, err := s.ValidateAccessToken(tokenString)
	if err != nil {
		return identity.Actor{}, err
	}
	return claims.Actor()
}
