package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/knoverse/backend/internal/inference"
	"github.com/knoverse/backend/internal/middleware"
	"github.com/knoverse/backend/internal/models"
	"github.com/knoverse/backend/internal/storage"
	"github.com/knoverse/backend/pkg/logger"
	"github.com/knoverse/backend/pkg/utils"
	"gorm.io/gorm"
)

type FilesHandler struct {
	DB        *gorm.DB
	Storage   *storage.MinIOClient
	Inference *inference.Client
}

func NewFilesHandler(db *gorm.DB, storageClient *storage.MinIOClient, inferenceClient *inference.Client) *FilesHandler {
	return &FilesHandler{DB: db, Storage: storageClient, Inference: inferenceClient}
}

func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}

	teamID, err := parseUUID(c.FormValue("teamId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid teamId")
	}

	var team models.Team
	if err := h.DB.First(&team, "id = ?", teamID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "team not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading team")
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
	}
	defer stream.Close()

	filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if filename == "" || filename == "." {
		return utils.Error(c, fiber.StatusBadRequest, "invalid filename")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("%s/%s/%s", teamID.String(), uuid.New().String(), filename)
	if err := h.Storage.Upload(c.Context(), objectName, stream, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed uploading file")
	}

	entry := models.TeamFile{
		TeamID:     teamID,
		Name:       filename,
		MimeType:   contentType,
		Size:       fileHeader.Size,
		ObjectName: objectName,
	}
	if err := h.DB.Create(&entry).Error; err != nil {
		_ = h.Storage.Delete(c.Context(), objectName)
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating file record")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_uploaded", map[string]interface{}{
		"file_id":     entry.ID.String(),
		"file_name":   filename,
		"file_size":   fileHeader.Size,
		"mime_type":   contentType,
		"object_name": objectName,
		"team_id":     teamID.String(),
	})

	// The row and object are kept on vectorize failure so indexing can be
	// retried out of band.
	if err := h.Inference.Vectorize(c.Context(), entry.ID.String(), objectName, teamID.String()); err != nil {
		return inferenceError(c, err, "vectorize failed")
	}

	return utils.Success(c, fiber.StatusCreated, entry)
}

func (h *FilesHandler) List(c *fiber.Ctx) error {
	teamID, err := parseUUID(c.Query("teamId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid teamId")
	}

	var files []models.TeamFile
	if err := h.DB.Where("team_id = ?", teamID).
		Order("created_at DESC").
		Find(&files).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing files")
	}

	return utils.Success(c, fiber.StatusOK, files)
}

func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var file models.TeamFile
	if err := h.DB.First(&file, "id = ?", fileID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading file")
	}

	if err := removeFileEverywhere(c.Context(), h.DB, h.Storage, h.Inference, file); err != nil {
		var upstream *inference.UpstreamError
		if errors.As(err, &upstream) || errors.Is(err, inference.ErrNotConfigured) {
			return inferenceError(c, err, "failed removing file from index")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting file")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_deleted", map[string]interface{}{
		"file_id":   file.ID.String(),
		"file_name": file.Name,
		"team_id":   file.TeamID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "file deleted"})
}

// removeFileEverywhere runs the three-step file removal: DB row, storage
// object, then the inference index. Steps are sequential and a failure stops
// the sequence; already completed steps are not rolled back.
func removeFileEverywhere(ctx context.Context, db *gorm.DB, storageClient *storage.MinIOClient, inferenceClient *inference.Client, file models.TeamFile) error {
	result := db.Delete(&models.TeamFile{}, "id = ?", file.ID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	if file.ObjectName != "" {
		if err := storageClient.Delete(ctx, file.ObjectName); err != nil {
			return err
		}
	}

	return inferenceClient.DeleteFile(ctx, file.ID.String())
}

// inferenceError maps inference client failures onto responses: a missing
// base URL is a 500 misconfiguration, everything else is a 502 carrying the
// downstream status and body.
func inferenceError(c *fiber.Ctx, err error, message string) error {
	if errors.Is(err, inference.ErrNotConfigured) {
		return utils.Error(c, fiber.StatusInternalServerError, "inference service not configured")
	}

	var upstream *inference.UpstreamError
	if errors.As(err, &upstream) {
		return utils.ErrorWithDetails(c, fiber.StatusBadGateway, message, fiber.Map{
			"upstreamStatus": upstream.Status,
			"upstreamBody":   upstream.Body,
		})
	}

	return utils.ErrorWithDetails(c, fiber.StatusBadGateway, message, fiber.Map{
		"cause": err.Error(),
	})
}
