package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vigil-exam/vigil/internal/model"
	"github.com/vigil-exam/vigil/internal/response"
	"github.com/vigil-exam/vigil/internal/service"
	"github.com/vigil-exam/vigil/internal/validator"
)

// CatalogHandler handles exam catalog management for reviewers.
type CatalogHandler struct {
	catalogService *service.CatalogService
	authService    *service.AuthService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogService *service.CatalogService, authService *service.AuthService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, authService: authService}
}

type createExamRequest struct {
	Title             string     `json:"title" binding:"required,min=3,max=200"`
	DurationMinutes   int        `json:"duration_minutes" binding:"required,min=1,max=480"`
	MaxViolations     int        `json:"max_violations" binding:"min=0,max=100"`
	RequireFullscreen bool       `json:"require_fullscreen"`
	AllowGuests       bool       `json:"allow_guests"`
	AccessCode        string     `json:"access_code" binding:"omitempty,min=4,max=64"`
	WindowStart       *time.Time `json:"window_start"`
	WindowEnd         *time.Time `json:"window_end"`
}

// CreateExam godoc
// POST /api/v1/review/exams
func (h *CatalogHandler) CreateExam(c *gin.Context) {
	var req createExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam := &model.Exam{
		Title:             req.Title,
		DurationMinutes:   req.DurationMinutes,
		MaxViolations:     req.MaxViolations,
		RequireFullscreen: req.RequireFullscreen,
		AllowGuests:       req.AllowGuests,
		WindowStart:       req.WindowStart,
		WindowEnd:         req.WindowEnd,
	}
	if req.AccessCode != "" {
		hash, err := h.authService.HashPassword(req.AccessCode)
		if err != nil {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		exam.AccessCodeHash = hash
	}

	if err := h.catalogService.CreateExam(c.Request.Context(), exam); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusCreated, exam)
}

type addQuestionRequest struct {
	Type         model.QuestionType `json:"type" binding:"required,oneof=single_choice multi_choice text"`
	QuestionText string             `json:"question_text" binding:"required"`
	Options      map[string]string  `json:"options"`
	AnswerKey    interface{}        `json:"answer_key"`
	Points       float64            `json:"points" binding:"min=0"`
	OrderNum     int                `json:"order_num" binding:"min=0"`
}

// AddQuestion godoc
// POST /api/v1/review/exams/:exam_id/questions
func (h *CatalogHandler) AddQuestion(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req addQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q := &model.Question{
		ExamID:       examID,
		Type:         req.Type,
		QuestionText: req.QuestionText,
		Points:       req.Points,
		OrderNum:     req.OrderNum,
	}
	if q.Options, err = marshalRaw(req.Options); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	if q.AnswerKey, err = marshalRaw(req.AnswerKey); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	if err := h.catalogService.AddQuestion(c.Request.Context(), q); err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotDraft):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusCreated, q)
}

func marshalRaw(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// PublishExam godoc
// POST /api/v1/review/exams/:exam_id/publish
func (h *CatalogHandler) PublishExam(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.catalogService.Publish(c.Request.Context(), examID); err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotDraft):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		case errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "published"})
}
