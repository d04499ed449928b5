package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vigil-exam/vigil/internal/middleware"
	"github.com/vigil-exam/vigil/internal/model"
	"github.com/vigil-exam/vigil/internal/response"
	"github.com/vigil-exam/vigil/internal/service"
	"github.com/vigil-exam/vigil/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService     *service.AuthService
	subjectService  *service.SubjectService
	reviewerService *service.ReviewerService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	authService *service.AuthService,
	subjectService *service.SubjectService,
	reviewerService *service.ReviewerService,
) *AuthHandler {
	return &AuthHandler{
		authService:     authService,
		subjectService:  subjectService,
		reviewerService: reviewerService,
	}
}

// StudentLogin godoc
// POST /api/v1/auth/student/login
// Validates external reference + password, returns a taker JWT.
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req model.StudentLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.subjectService.GetStudentByExternalRef(c.Request.Context(), req.ExternalRef)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.authService.CheckPassword(student.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.authService.GenerateTakerToken(student)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"subject": gin.H{
			"id":           student.ID,
			"kind":         student.Kind,
			"name":         student.Name,
			"external_ref": student.ExternalRef,
		},
	})
}

// ReviewerLogin godoc
// POST /api/v1/auth/reviewer/login
// Validates email + password, returns a reviewer JWT.
func (h *AuthHandler) ReviewerLogin(c *gin.Context) {
	var req model.ReviewerLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	reviewer, err := h.reviewerService.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.authService.CheckPassword(reviewer.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.authService.GenerateReviewerToken(reviewer)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"reviewer": gin.H{
			"id":    reviewer.ID,
			"email": reviewer.Email,
			"name":  reviewer.Name,
		},
	})
}

// GetProfile godoc
// GET /api/v1/auth/me
// Returns the identity embedded in the presented token.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"subject_id": claims.SubjectID,
		"token_type": claims.TokenType,
		"name":       claims.Name,
	})
}
