package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledger/backend/internal/application/settlement"
	"github.com/ledger/backend/internal/domain/identity"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/auth"
	"github.com/ledger/backend/internal/infrastructure/config"
	"github.com/ledger/backend/internal/infrastructure/event"
	"github.com/ledger/backend/internal/infrastructure/logger"
	"github.com/ledger/backend/internal/infrastructure/persistence"
	"github.com/ledger/backend/internal/interfaces/http/handler"
	"github.com/ledger/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingRegistrar struct{}

func (pingRegistrar) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func TestRouter_Setup(t *testing.T) {
	engine := gin.New()
	var hits int
	NewRouter(engine,
		WithAPIVersion("v2"),
		WithMiddleware(func(c *gin.Context) { hits++; c.Next() }),
	).Register(pingRegistrar{}).Setup()
	engine.GET("/outside", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/outside", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, hits, "API middleware must not run outside the API group")
}

// stack wires the real HTTP surface over an in-memory database
type stack struct {
	engine     *gin.Engine
	jwt        *auth.JWTService
	dispatcher *event.AsyncDispatcher
	audit      *persistence.GormAuditLogRepository
}

func newStack(t *testing.T) *stack {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	database := persistence.NewDatabaseFromGorm(db)
	require.NoError(t, database.AutoMigrate())

	clock := shared.NewFixedClock(time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC))
	auditRepo := persistence.NewGormAuditLogRepository(db)
	dispatcher := event.NewAsyncDispatcher(event.DispatcherConfig{QueueSize: 64, Workers: 1}, zap.NewNop(),
		event.WithAuditRecorder(auditRepo))
	require.NoError(t, dispatcher.Start())

	obligations := persistence.NewGormObligationRepository(db)
	commands := settlement.NewEngine(obligations, persistence.NewGormPaymentRepository(db), persistence.NewGormTransactionScope(db),
		settlement.WithSideEffects(dispatcher), settlement.WithClock(clock))
	queries := settlement.NewQueryService(obligations, settlement.WithClock(clock))

	jwtService := auth.NewJWTService(config.JWTConfig{Secret: "router-test-secret-with-32-chars!", Issuer: "ledger"}, auth.WithClock(clock))

	engine := gin.New()
	engine.Use(logger.GinMiddleware(zap.NewNop()))
	engine.GET("/health", handler.NewHealthHandler(database, "test").Health)
	NewRouter(engine, WithMiddleware(middleware.Authenticate(middleware.AuthConfig{Authenticator: jwtService}))).
		Register(handler.NewObligationHandler(commands, queries)).
		Setup()

	return &stack{engine: engine, jwt: jwtService, dispatcher: dispatcher, audit: auditRepo}
}

func (s *stack) token(t *testing.T, actor identity.Actor) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(actor)
	require.NoError(t, err)
	return token
}

func (s *stack) do(t *testing.T, actor identity.Actor, method, path, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+s.token(t, actor))
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func data(resp map[string]any) map[string]any {
	d, _ := resp["data"].(map[string]any)
	return d
}

func errorCode(resp map[string]any) string {
	e, _ := resp["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestObligationAPI_EndToEnd(t *testing.T) {
	s := newStack(t)
	branchA := uuid.New()
	branchB := uuid.New()
	admin := identity.NewUnrestrictedActor(uuid.New(), nil)
	clerkA := identity.NewBranchActor(uuid.New(), &branchA)
	clerkB := identity.NewBranchActor(uuid.New(), &branchB)

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/obligations", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	status, resp := s.do(t, admin, http.MethodPost, "/api/v1/obligations",
		`{"direction":"OWED_TO_US","counterparty_name":"Acme","amount":"1000","currency":"USD",
		  "issue_date":"2024-05-01","due_date":"2024-06-01","branch_id":"`+branchA.String()+`"}`)
	require.Equal(t, http.StatusCreated, status, resp)
	id := data(resp)["id"].(string)
	assert.Equal(t, "ACTIVE", data(resp)["status"])

	status, resp = s.do(t, clerkA, http.MethodPost, "/api/v1/obligations/"+id+"/payments", `{"amount":"400"}`)
	require.Equal(t, http.StatusCreated, status, resp)
	ob := data(resp)["obligation"].(map[string]any)
	assert.Equal(t, "PARTIAL", ob["status"])
	assert.Equal(t, "600", ob["remaining_amount"])

	status, resp = s.do(t, clerkB, http.MethodGet, "/api/v1/obligations/"+id, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "ERR_FORBIDDEN", errorCode(resp))

	status, resp = s.do(t, clerkA, http.MethodPost, "/api/v1/obligations/"+id+"/payments", `{"amount":"700"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ERR_VALIDATION", errorCode(resp))

	status, resp = s.do(t, clerkA, http.MethodGet, "/api/v1/obligations/"+id+"/verify", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, data(resp)["consistent"])

	status, resp = s.do(t, clerkB, http.MethodGet, "/api/v1/obligations", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, resp["data"])

	status, resp = s.do(t, admin, http.MethodGet, "/api/v1/obligations/summary", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, data(resp)["total"])

	status, resp = s.do(t, admin, http.MethodDelete, "/api/v1/obligations/"+id, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ERR_CONFLICT", errorCode(resp))

	status, resp = s.do(t, clerkA, http.MethodPost, "/api/v1/obligations/"+id+"/payments", `{"amount":"600","payment_date":"2024-05-09"}`)
	require.Equal(t, http.StatusCreated, status, resp)
	assert.Equal(t, "PAID", data(resp)["obligation"].(map[string]any)["status"])

	status, resp = s.do(t, clerkA, http.MethodGet, "/api/v1/obligations/"+id+"/payments", "")
	require.Equal(t, http.StatusOK, status)
	payments := resp["data"].([]any)
	require.Len(t, payments, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.dispatcher.Stop(ctx))

	logs, err := s.audit.FindByEntity(context.Background(), ledger.AggregateTypeObligation, uuid.MustParse(id))
	require.NoError(t, err)
	assert.Len(t, logs, 3, "one CREATE and two PAYMENT entries")
}
