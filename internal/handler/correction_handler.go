package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-correction-api/internal/dto"
	"github.com/noah-isme/sma-correction-api/internal/middleware"
	"github.com/noah-isme/sma-correction-api/internal/models"
	appErrors "github.com/noah-isme/sma-correction-api/pkg/errors"
	"github.com/noah-isme/sma-correction-api/pkg/response"
)

type correctionService interface {
	Submit(ctx context.Context, req dto.CreateCorrectionRequest, actor *models.JWTClaims, client models.ClientContext) (int64, error)
	Approve(ctx context.Context, id int64, actor *models.JWTClaims, client models.ClientContext) error
	Reject(ctx context.Context, id int64, reason string, actor *models.JWTClaims, client models.ClientContext) error
}

type listingService interface {
	ListPending(ctx context.Context) ([]dto.PendingSummary, error)
	ListHistory(ctx context.Context, statusKeyword string) ([]dto.HistorySummary, error)
	GetDetail(ctx context.Context, id int64) (*dto.RequestDetail, error)
}

// CorrectionHandler exposes REST endpoints for the correction-request
// lifecycle and its listings.
type CorrectionHandler struct {
	corrections correctionService
	listings    listingService
}

// NewCorrectionHandler constructs the handler.
func NewCorrectionHandler(corrections correctionService, listings listingService) *CorrectionHandler {
	return &CorrectionHandler{corrections: corrections, listings: listings}
}

// Create submits a new correction request.
func (h *CorrectionHandler) Create(c *gin.Context) {
	var req dto.CreateCorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid correction payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := h.corrections.Submit(c.Request.Context(), req, claims, middleware.ClientContextValue(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.CreateCorrectionResponse{RequestID: id})
}

// ListPending returns the approval queue.
func (h *CorrectionHandler) ListPending(c *gin.Context) {
	summaries, err := h.listings.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries)
}

// ListHistory returns the most recent requests, optionally filtered by status.
func (h *CorrectionHandler) ListHistory(c *gin.Context) {
	summaries, err := h.listings.ListHistory(c.Request.Context(), c.DefaultQuery("status", "all"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries)
}

// Get returns the full record for one request.
func (h *CorrectionHandler) Get(c *gin.Context) {
	id, ok := requestIDParam(c)
	if !ok {
		return
	}
	detail, err := h.listings.GetDetail(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// Approve marks a pending request approved.
func (h *CorrectionHandler) Approve(c *gin.Context) {
	id, ok := requestIDParam(c)
	if !ok {
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.corrections.Approve(c.Request.Context(), id, claims, middleware.ClientContextValue(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reject marks a pending request rejected with the supplied reason.
func (h *CorrectionHandler) Reject(c *gin.Context) {
	id, ok := requestIDParam(c)
	if !ok {
		return
	}
	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rejection payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.corrections.Reject(c.Request.Context(), id, req.Reason, claims, middleware.ClientContextValue(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func requestIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request id"))
		return 0, false
	}
	return id, true
}
