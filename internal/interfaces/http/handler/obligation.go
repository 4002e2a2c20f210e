package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledger/backend/internal/application/settlement"
	"github.com/ledger/backend/internal/domain/identity"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/interfaces/http/dto"
)

// SettlementCommands is the write and point-read side of the settlement engine
type SettlementCommands interface {
	CreateObligation(ctx context.Context, actor identity.Actor, in settlement.CreateObligationInput) (*settlement.ObligationResult, error)
	ApplyPayment(ctx context.Context, actor identity.Actor, id uuid.UUID, in settlement.ApplyPaymentInput) (*settlement.PaymentApplied, error)
	SoftDelete(ctx context.Context, actor identity.Actor, id uuid.UUID) error
	GetByID(ctx context.Context, actor identity.Actor, id uuid.UUID) (*settlement.ObligationResult, error)
	ListPayments(ctx context.Context, actor identity.Actor, id uuid.UUID) ([]settlement.PaymentResult, error)
	VerifyLedger(ctx context.Context, actor identity.Actor, id uuid.UUID) (*settlement.VerifyResult, error)
}

// SettlementQueries is the list and aggregate side
type SettlementQueries interface {
	List(ctx context.Context, actor identity.Actor, f settlement.ListFilter) (*shared.Paginated[settlement.ObligationResult], error)
	Summary(ctx context.Context, actor identity.Actor, branchFilter *uuid.UUID) (*ledger.Summary, error)
}

// ObligationHandler serves the obligations API
type ObligationHandler struct {
	BaseHandler
	commands SettlementCommands
	queries  SettlementQueries
}

// NewObligationHandler creates a new ObligationHandler
func NewObligationHandler(commands SettlementCommands, queries SettlementQueries) *ObligationHandler {
	return &ObligationHandler{commands: commands, queries: queries}
}

// RegisterRoutes mounts the obligation routes under rg
func (h *ObligationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/obligations")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/summary", h.Summary)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/payments", h.ApplyPayment)
	g.GET("/:id/payments", h.ListPayments)
	g.GET("/:id/verify", h.Verify)
}

// Create handles POST /obligations
func (h *ObligationHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req dto.CreateObligationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidJSON(c, err)
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.commands.CreateObligation(c.Request.Context(), actor, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// List handles GET /obligations
func (h *ObligationHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var q dto.ListObligationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.HandleError(c, shared.NewValidationError("query", err.Error()))
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, err := h.queries.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPageResponse(page))
}

// Summary handles GET /obligations/summary
func (h *ObligationHandler) Summary(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	branch, err := dto.ParseOptionalUUID("branch_id", c.Query("branch_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	summary, err := h.queries.Summary(c.Request.Context(), actor, branch)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Get handles GET /obligations/:id
func (h *ObligationHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	result, err := h.commands.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Delete handles DELETE /obligations/:id
func (h *ObligationHandler) Delete(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.commands.SoftDelete(c.Request.Context(), actor, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ApplyPayment handles POST /obligations/:id/payments
func (h *ObligationHandler) ApplyPayment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req dto.ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidJSON(c, err)
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.commands.ApplyPayment(c.Request.Context(), actor, id, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ListPayments handles GET /obligations/:id/payments
func (h *ObligationHandler) ListPayments(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	payments, err := h.commands.ListPayments(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// Verify handles GET /obligations/:id/verify
func (h *ObligationHandler) Verify(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	result, err := h.commands.VerifyLedger(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

var (
	_ SettlementCommands = (*settlement.Engine)(nil)
	_ SettlementQueries  = (*settlement.QueryService)(nil)
)
