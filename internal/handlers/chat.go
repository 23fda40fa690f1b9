package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/knoverse/backend/internal/inference"
	"github.com/knoverse/backend/internal/middleware"
	"github.com/knoverse/backend/internal/models"
	"github.com/knoverse/backend/internal/services"
	"github.com/knoverse/backend/pkg/logger"
	"github.com/knoverse/backend/pkg/utils"
	"gorm.io/gorm"
)

type ChatHandler struct {
	DB        *gorm.DB
	Inference *inference.Client
	Analytics *services.AnalyticsService
}

func NewChatHandler(db *gorm.DB, inferenceClient *inference.Client, analytics *services.AnalyticsService) *ChatHandler {
	return &ChatHandler{DB: db, Inference: inferenceClient, Analytics: analytics}
}

type sendMessageRequest struct {
	Message   string  `json:"message"`
	SessionID *string `json:"sessionId"`
	TeamID    string  `json:"teamId"`
}

// SendMessage relays one user message to the inference service. The service
// answers asynchronously and persists both chat rows itself, so the only
// state written here is the session row and a usage event.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return utils.Error(c, fiber.StatusBadRequest, "message is required")
	}
	teamID, err := parseUUID(req.TeamID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid teamId")
	}

	var membership models.TeamMember
	if err := h.DB.First(&membership, "team_id = ? AND user_id = ?", teamID, currentUser.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusForbidden, "not a member of this team")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}

	var session models.ChatSession
	if req.SessionID == nil || strings.TrimSpace(*req.SessionID) == "" {
		session = models.ChatSession{
			TeamID: teamID,
			UserID: currentUser.ID,
		}
		if err := h.DB.Create(&session).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed creating session")
		}
	} else {
		sessionID, err := parseUUID(*req.SessionID)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid sessionId")
		}
		if err := h.DB.First(&session, "id = ?", sessionID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.Error(c, fiber.StatusNotFound, "session not found")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading session")
		}
		if session.UserID != currentUser.ID {
			return utils.Error(c, fiber.StatusForbidden, "session belongs to another user")
		}
	}

	if err := h.Inference.Chat(c.Context(), req.Message, session.ID.String(), teamID.String()); err != nil {
		return inferenceError(c, err, "failed relaying message")
	}

	// Best-effort bookkeeping after a successful relay. Neither failure
	// changes the response.
	h.Analytics.RecordMessageAsync(teamID, currentUser.ID)
	if err := h.DB.Model(&models.ChatSession{}).
		Where("id = ?", session.ID).
		Update("updated_at", time.Now().UTC()).Error; err != nil {
		logger.ErrorWithUser(currentUser.ID.String(), "session_touch_failed", err, map[string]interface{}{
			"session_id": session.ID.String(),
		})
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"sessionId": session.ID})
}

func (h *ChatHandler) ListSessions(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	teamID, err := parseUUID(c.Query("teamId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid teamId")
	}

	var sessions []models.ChatSession
	if err := h.DB.Where("team_id = ? AND user_id = ?", teamID, currentUser.ID).
		Order("updated_at DESC").
		Find(&sessions).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing sessions")
	}

	return utils.Success(c, fiber.StatusOK, sessions)
}

func (h *ChatHandler) History(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	sessionID, err := parseUUID(c.Query("sessionId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid sessionId")
	}

	var session models.ChatSession
	if err := h.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "session not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading session")
	}
	if session.UserID != currentUser.ID {
		return utils.Error(c, fiber.StatusForbidden, "session belongs to another user")
	}

	var messages []models.ChatMessage
	if err := h.DB.Where("chat_session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading history")
	}

	return utils.Success(c, fiber.StatusOK, messages)
}
