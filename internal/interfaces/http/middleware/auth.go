package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ledger/backend/internal/domain/identity"
	"github.com/ledger/backend/internal/infrastructure/auth"
	"github.com/ledger/backend/internal/infrastructure/logger"
	"github.com/ledger/backend/internal/interfaces/http/dto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Context keys and headers
const (
	ActorKey      = "actor"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// ActorAuthenticator resolves a bearer token to the calling actor
type ActorAuthenticator interface {
	Authenticate(token string) (identity.Actor, error)
}

// AuthConfig holds configuration for the authentication middleware
type AuthConfig struct {
	Authenticator ActorAuthenticator
	// SkipPaths are exact paths that don't require authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// Authenticate verifies the bearer token and stores the actor in the gin context.
// The request logger and the current span are enriched with the actor.
func Authenticate(cfg AuthConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) {
			abortUnauthorized(c, log, auth.ErrInvalidToken, "Missing or malformed authorization header")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		if token == "" {
			abortUnauthorized(c, log, auth.ErrInvalidToken, "Missing token")
			return
		}

		actor, err := cfg.Authenticator.Authenticate(token)
		if err != nil {
			abortUnauthorized(c, log, err, "Token validation failed")
			return
		}

		c.Set(ActorKey, actor)

		branch := ""
		if actor.HasBranch() {
			branch = actor.BranchID.String()
		}
		ctx, reqLogger := logger.WithActor(c.Request.Context(), logger.GetGinLogger(c), actor.ID.String(), branch)
		c.Request = c.Request.WithContext(ctx)
		logger.SetGinLogger(c, reqLogger)

		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			span.SetAttributes(
				attribute.String("actor.id", actor.ID.String()),
				attribute.String("actor.role", actor.Role.String()),
				attribute.String("actor.branch_id", branch),
			)
		}

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, log *zap.Logger, err error, message string) {
	log.Warn("Authentication failed",
		zap.Error(err),
		zap.String("reason", message),
		zap.String("path", c.Request.URL.Path),
	)

	code := dto.ErrCodeUnauthorized
	msg := "Authentication required"
	if errors.Is(err, auth.ErrExpiredToken) {
		code = dto.ErrCodeTokenExpired
		msg = "Token has expired"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(&dto.ErrorInfo{
		Code:      code,
		Message:   msg,
		RequestID: c.GetString(string(logger.RequestIDKey)),
	}))
}

// GetActor retrieves the authenticated actor from the gin context
func GetActor(c *gin.Context) (identity.Actor, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return identity.Actor{}, false
	}
	actor, ok := v.(identity.Actor)
	return actor, ok
}
