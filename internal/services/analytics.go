package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/knoverse/backend/internal/models"
	"github.com/knoverse/backend/internal/storage"
	"github.com/knoverse/backend/pkg/logger"
	"gorm.io/gorm"
)

// AnalyticsService records usage events off the request path. Inserts are
// best-effort: a full queue or a failed insert never surfaces to the caller.
type AnalyticsService struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
	queue   chan models.AnalyticsEvent
}

func NewAnalyticsService(db *gorm.DB, storageClient *storage.MinIOClient) *AnalyticsService {
	s := &AnalyticsService{
		DB:      db,
		Storage: storageClient,
		queue:   make(chan models.AnalyticsEvent, 1000),
	}
	go s.processQueue()
	return s
}

// RecordMessageAsync enqueues one event for a relayed chat message.
func (s *AnalyticsService) RecordMessageAsync(teamID uuid.UUID, userID uuid.UUID) {
	eventType := "chat_message"
	event := models.AnalyticsEvent{
		TeamID:    teamID,
		UserID:    &userID,
		EventType: &eventType,
		CreatedAt: time.Now().UTC(),
	}

	select {
	case s.queue <- event:
	default:
		logger.Warn("analytics_queue_full", map[string]interface{}{
			"team_id": teamID.String(),
			"dropped": true,
		})
	}
}

func (s *AnalyticsService) processQueue() {
	for event := range s.queue {
		if err := s.DB.Create(&event).Error; err != nil {
			logger.Error("analytics_event_insert_failed", err, map[string]interface{}{
				"team_id": event.TeamID.String(),
			})
		}
	}
}

// StartExporter runs a background goroutine that periodically exports new
// event rows to object storage as NDJSON files.
func (s *AnalyticsService) StartExporter(interval time.Duration) {
	if s.Storage == nil {
		logger.Info("analytics_exporter_disabled", map[string]interface{}{
			"reason": "no storage client configured",
		})
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			s.export()
		}
	}()

	logger.Info("analytics_exporter_started", map[string]interface{}{
		"interval": interval.String(),
	})
}

func (s *AnalyticsService) export() {
	var cursor models.AnalyticsExportCursor
	err := s.DB.First(&cursor).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			cursor = models.AnalyticsExportCursor{
				LastExportAt: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			}
			if createErr := s.DB.Create(&cursor).Error; createErr != nil {
				logger.Error("analytics_export_cursor_create_failed", createErr, nil)
				return
			}
		} else {
			logger.Error("analytics_export_cursor_load_failed", err, nil)
			return
		}
	}

	var events []models.AnalyticsEvent
	if err := s.DB.Where("created_at > ?", cursor.LastExportAt).
		Order("created_at ASC").
		Limit(10000).
		Find(&events).Error; err != nil {
		logger.Error("analytics_export_query_failed", err, nil)
		return
	}

	if len(events) == 0 {
		return
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			logger.Error("analytics_export_encode_failed", err, map[string]interface{}{
				"event_id": event.ID.String(),
			})
			continue
		}
	}

	now := time.Now().UTC()
	objectName := fmt.Sprintf("analytics/%s/%s.ndjson",
		now.Format("2006/01/02"),
		now.Format("15-04-05"),
	)

	if err := s.Storage.Upload(
		context.Background(),
		objectName,
		&buf,
		int64(buf.Len()),
		"application/x-ndjson",
	); err != nil {
		logger.Error("analytics_export_upload_failed", err, map[string]interface{}{
			"object_name": objectName,
			"count":       len(events),
		})
		return
	}

	lastCreatedAt := events[len(events)-1].CreatedAt
	s.DB.Model(&cursor).Updates(map[string]interface{}{
		"last_export_at": lastCreatedAt,
		"exported_count": gorm.Expr("exported_count + ?", len(events)),
	})

	logger.Info("analytics_export_success", map[string]interface{}{
		"object_name": objectName,
		"count":       len(events),
	})
}
