package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/vigil-exam/vigil/internal/middleware"
	"github.com/vigil-exam/vigil/internal/service"
	ws "github.com/vigil-exam/vigil/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the attempt's real-time sync stream: answer saves,
// violations, and keepalive pings over one connection.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream
// Upgrades to WebSocket for real-time answer sync and violation reporting.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	subjectID := claims.SubjectID

	wsLog := h.log.With().
		Str("subject_id", subjectID.String()).
		Str("attempt_id", attemptID.String()).
		Logger()

	wsLog.Info().Msg("Taker connected")

	for {
		var envelope ws.RequestEnvelope
		raw, err := ws.ReadRaw(conn, &envelope)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch envelope.Action {
		case ws.ActionSave:
			h.handleSave(conn, wsLog, attemptID, subjectID, raw)
		case ws.ActionViolation:
			h.handleViolation(conn, wsLog, attemptID, subjectID, raw)
		case ws.ActionPing:
			ws.WritePong(conn)
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(envelope.Action))
		}
	}
}

// handleSave syncs one committed response entry.
func (h *WSHandler) handleSave(conn *websocket.Conn, wsLog zerolog.Logger, attemptID, subjectID uuid.UUID, raw []byte) {
	var msg ws.SaveRequest
	if err := ws.DecodeRaw(raw, &msg); err != nil {
		ws.WriteError(conn, "malformed save payload")
		return
	}
	// Validate the question ID is a well-formed UUID to prevent Redis key abuse.
	if _, err := uuid.Parse(msg.QuestionID); err != nil {
		ws.WriteError(conn, "invalid question_id format")
		return
	}

	if err := h.attemptService.SaveAnswer(context.Background(), attemptID, subjectID, msg.QuestionID, msg.Patch); err != nil {
		wsLog.Error().Err(err).Msg("Save failed")
		ws.WriteError(conn, "save failed")
		return
	}
	ws.WriteAck(conn, "saved")
}

// handleViolation records one proctoring violation.
func (h *WSHandler) handleViolation(conn *websocket.Conn, wsLog zerolog.Logger, attemptID, subjectID uuid.UUID, raw []byte) {
	var msg ws.ViolationRequest
	if err := ws.DecodeRaw(raw, &msg); err != nil || !msg.Type.Known() {
		ws.WriteError(conn, "malformed violation payload")
		return
	}

	if err := h.attemptService.LogViolation(context.Background(), attemptID, subjectID, msg.Type); err != nil {
		wsLog.Error().Err(err).Msg("Violation log failed")
		ws.WriteError(conn, "violation log failed")
		return
	}
	ws.WriteAck(conn, "logged")
}
