package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vigil-exam/vigil/internal/middleware"
	"github.com/vigil-exam/vigil/internal/model"
	"github.com/vigil-exam/vigil/internal/response"
	"github.com/vigil-exam/vigil/internal/service"
	"github.com/vigil-exam/vigil/internal/validator"
)

// AttemptHandler handles the attempt lifecycle endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
	subjectService *service.SubjectService
	authService    *service.AuthService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(
	attemptService *service.AttemptService,
	subjectService *service.SubjectService,
	authService *service.AuthService,
) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		subjectService: subjectService,
		authService:    authService,
	}
}

// failAttemptError maps attempt domain errors onto the response envelope.
func failAttemptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrInvalidAccessCode):
		response.Fail(c, http.StatusForbidden, response.ErrInvalidAccessCode)
	case errors.Is(err, service.ErrGuestsNotAllowed):
		response.Fail(c, http.StatusForbidden, response.ErrGuestsNotAllowed)
	case errors.Is(err, service.ErrAttemptFinalized):
		response.Fail(c, http.StatusConflict, response.ErrAttemptFinalized)
	case errors.Is(err, service.ErrNotYourAttempt):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, model.ErrHashMismatch):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrHashMismatch)
	case errors.Is(err, service.ErrExpiredWindow):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrExpiredWindow)
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// StartAttempt godoc
// POST /api/v1/exams/:exam_id/attempts
// Starts or re-enters an attempt. Authenticated students present their taker
// token; guests send a contact tuple and receive a guest token in the result.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctx := c.Request.Context()

	var subject *model.Subject
	var guestToken string
	if claims := middleware.GetClaims(c); claims != nil && claims.IsTaker() {
		subject, err = h.subjectService.GetByID(ctx, claims.SubjectID)
		if err != nil {
			response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
	} else {
		if req.Guest == nil {
			response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		subject, err = h.attemptService.ResolveGuest(ctx, *req.Guest)
		if err != nil {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		guestToken, err = h.authService.GenerateTakerToken(subject)
		if err != nil {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
	}

	result, err := h.attemptService.StartAttempt(ctx, examID, subject, req)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	result.GuestToken = guestToken

	response.Success(c, http.StatusOK, result)
}

// GetState godoc
// GET /api/v1/attempts/:attempt_id/state
// Returns the saved answers and authoritative remaining time.
func (h *AttemptHandler) GetState(c *gin.Context) {
	attemptID, claims, ok := h.attemptParams(c)
	if !ok {
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), attemptID, claims.SubjectID)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// SaveAnswer godoc
// PUT /api/v1/attempts/:attempt_id/answers/:question_id
// Applies a response patch to one question. Nil patch fields leave the
// corresponding entry fields untouched.
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	attemptID, claims, ok := h.attemptParams(c)
	if !ok {
		return
	}

	questionID := c.Param("question_id")
	if _, err := uuid.Parse(questionID); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var patch model.ResponsePatch
	if fields := validator.Bind(c, &patch); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), attemptID, claims.SubjectID, questionID, patch); err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// LogViolation godoc
// POST /api/v1/attempts/:attempt_id/violations
// Appends a proctoring violation to the durable trail.
func (h *AttemptHandler) LogViolation(c *gin.Context) {
	attemptID, claims, ok := h.attemptParams(c)
	if !ok {
		return
	}

	var req model.LogViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.LogViolation(c.Request.Context(), attemptID, claims.SubjectID, req.Type); err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"status": "logged"})
}

// SubmitLive godoc
// POST /api/v1/attempts/:attempt_id/submit
// Finalizes a connected attempt. Idempotent.
func (h *AttemptHandler) SubmitLive(c *gin.Context) {
	attemptID, claims, ok := h.attemptParams(c)
	if !ok {
		return
	}

	var req struct {
		Responses map[string]model.ResponseEntry `json:"responses"`
	}
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attemptService.SubmitLive(c.Request.Context(), attemptID, claims.SubjectID, req.Responses)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// SubmitSealed godoc
// POST /api/v1/attempts/:attempt_id/submit-sealed
// Finalizes an attempt from a sealed snapshot. Integrity failures and
// out-of-window seals are terminal 422s; the client must not retry them.
func (h *AttemptHandler) SubmitSealed(c *gin.Context) {
	attemptID, claims, ok := h.attemptParams(c)
	if !ok {
		return
	}

	var snap model.SealedSnapshot
	if fields := validator.Bind(c, &snap); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if snap.AttemptID != attemptID {
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrHashMismatch)
		return
	}

	result, err := h.attemptService.SubmitSealed(c.Request.Context(), claims.SubjectID, snap)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Beacon godoc
// POST /api/v1/attempts/:attempt_id/beacon
// Accepts a best-effort unload-time state dump. Always 202 on queue success;
// the persistence worker validates the payload.
func (h *AttemptHandler) Beacon(c *gin.Context) {
	attemptID, _, ok := h.attemptParams(c)
	if !ok {
		return
	}

	var payload model.BeaconPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	payload.AttemptID = attemptID

	if err := h.attemptService.Beacon(c.Request.Context(), payload); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *AttemptHandler) attemptParams(c *gin.Context) (uuid.UUID, *service.Claims, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, nil, false
	}
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, nil, false
	}
	return attemptID, claims, true
}
