package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vigil-exam/vigil/internal/middleware"
	"github.com/vigil-exam/vigil/internal/model"
	"github.com/vigil-exam/vigil/internal/response"
	"github.com/vigil-exam/vigil/internal/service"
	"github.com/vigil-exam/vigil/internal/validator"
)

// ResumeHandler handles the resume handshake endpoints: takers file
// requests, reviewers list and decide them.
type ResumeHandler struct {
	resumeService *service.ResumeService
}

// NewResumeHandler creates a new ResumeHandler.
func NewResumeHandler(resumeService *service.ResumeService) *ResumeHandler {
	return &ResumeHandler{resumeService: resumeService}
}

// CreateRequest godoc
// POST /api/v1/attempts/:attempt_id/resume-requests
// Files a resume request for an interrupted attempt. Idempotent: a pending
// request's ticket is returned if one already exists.
func (h *ResumeHandler) CreateRequest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ticket, err := h.resumeService.Create(c.Request.Context(), attemptID, claims.SubjectID, claims.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotYourAttempt):
			response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		case errors.Is(err, service.ErrResumeNotEligible):
			response.Fail(c, http.StatusConflict, response.ErrResumeNotEligible)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, ticket)
}

// ListPending godoc
// GET /api/v1/review/resume-requests?page=1&per_page=50
// Returns one page of the reviewer queue, oldest first.
func (h *ResumeHandler) ListPending(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	requests, total, err := h.resumeService.ListPending(c.Request.Context(), page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if requests == nil {
		requests = []model.ResumeRequest{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"requests": requests}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	})
}

// Approve godoc
// POST /api/v1/review/resume-requests/:request_id/approve
func (h *ResumeHandler) Approve(c *gin.Context) {
	h.decide(c, true)
}

// Decline godoc
// POST /api/v1/review/resume-requests/:request_id/decline
func (h *ResumeHandler) Decline(c *gin.Context) {
	h.decide(c, false)
}

func (h *ResumeHandler) decide(c *gin.Context, approve bool) {
	requestID, err := uuid.Parse(c.Param("request_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ResumeDecisionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	decided, err := h.resumeService.Decide(c.Request.Context(), requestID, approve, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrResumeNotPending):
			response.Fail(c, http.StatusConflict, response.ErrResumeNotPending)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, decided)
}
