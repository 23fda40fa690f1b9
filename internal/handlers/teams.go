package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/knoverse/backend/internal/inference"
	"github.com/knoverse/backend/internal/middleware"
	"github.com/knoverse/backend/internal/models"
	"github.com/knoverse/backend/internal/storage"
	"github.com/knoverse/backend/pkg/logger"
	"github.com/knoverse/backend/pkg/utils"
	"gorm.io/gorm"
)

type TeamsHandler struct {
	DB        *gorm.DB
	Storage   *storage.MinIOClient
	Inference *inference.Client
}

func NewTeamsHandler(db *gorm.DB, storageClient *storage.MinIOClient, inferenceClient *inference.Client) *TeamsHandler {
	return &TeamsHandler{DB: db, Storage: storageClient, Inference: inferenceClient}
}

func (h *TeamsHandler) List(c *fiber.Ctx) error {
	var teams []models.Team
	if err := h.DB.Order("created_at DESC").Find(&teams).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing teams")
	}
	return utils.Success(c, fiber.StatusOK, teams)
}

func (h *TeamsHandler) Count(c *fiber.Ctx) error {
	var count int64
	if err := h.DB.Model(&models.Team{}).Count(&count).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting teams")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"numberOfTeams": count})
}

type createTeamRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=120"`
	Description *string `json:"description"`
}

func (h *TeamsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createTeamRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if err := utils.ValidateStruct(req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	team := models.Team{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.DB.Create(&team).Error; err != nil {
		return utils.Error(c, fiber.StatusConflict, "team name already exists")
	}

	logger.InfoWithUser(currentUser.ID.String(), "team_created", map[string]interface{}{
		"team_id":   team.ID.String(),
		"team_name": team.Name,
	})

	return utils.Success(c, fiber.StatusCreated, team)
}

// Delete removes the team's files one by one before deleting the team row.
// The per-file sequence is the same three-step removal as a single file
// delete; the loop stops at the first failing file and nothing already
// removed is restored.
func (h *TeamsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	teamID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid team id")
	}

	var team models.Team
	if err := h.DB.First(&team, "id = ?", teamID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "team not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading team")
	}

	var files []models.TeamFile
	if err := h.DB.Where("team_id = ?", teamID).Find(&files).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing team files")
	}

	for _, file := range files {
		if err := removeFileEverywhere(c.Context(), h.DB, h.Storage, h.Inference, file); err != nil {
			logger.ErrorWithUser(currentUser.ID.String(), "team_delete_file_failed", err, map[string]interface{}{
				"team_id": teamID.String(),
				"file_id": file.ID.String(),
			})
			return utils.Error(c, fiber.StatusInternalServerError, "failed deleting team files")
		}
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", teamID).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("team_id = ?", teamID).Delete(&models.ChatSession{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Team{}, "id = ?", teamID).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting team")
	}

	logger.InfoWithUser(currentUser.ID.String(), "team_deleted", map[string]interface{}{
		"team_id":   teamID.String(),
		"team_name": team.Name,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "team deleted"})
}

func (h *TeamsHandler) ListMembers(c *fiber.Ctx) error {
	teamID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid team id")
	}

	var team models.Team
	if err := h.DB.First(&team, "id = ?", teamID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "team not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading team")
	}

	var users []models.User
	if err := h.DB.
		Joins("JOIN team_members ON team_members.user_id = users.id").
		Where("team_members.team_id = ?", teamID).
		Order("users.full_name ASC").
		Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing members")
	}

	return utils.Success(c, fiber.StatusOK, users)
}

type addTeamMemberRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

func (h *TeamsHandler) AddMember(c *fiber.Ctx) error {
	teamID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid team id")
	}

	var req addTeamMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	userID, err := parseUUID(req.UserID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid userId")
	}

	var team models.Team
	if err := h.DB.First(&team, "id = ?", teamID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "team not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading team")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	membership := models.TeamMember{
		UserID: userID,
		TeamID: teamID,
	}
	if err := h.DB.Create(&membership).Error; err != nil {
		return utils.Error(c, fiber.StatusConflict, "user is already a member")
	}

	return utils.Success(c, fiber.StatusCreated, membership)
}

func (h *TeamsHandler) RemoveMember(c *fiber.Ctx) error {
	teamID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid team id")
	}
	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	result := h.DB.Where("team_id = ? AND user_id = ?", teamID, userID).Delete(&models.TeamMember{})
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed removing member")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "member not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "member removed"})
}

// MyTeams lists the teams the calling user belongs to.
func (h *TeamsHandler) MyTeams(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var teams []models.Team
	if err := h.DB.
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ?", currentUser.ID).
		Order("teams.created_at DESC").
		Find(&teams).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing teams")
	}

	return utils.Success(c, fiber.StatusOK, teams)
}
