package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnalyticsEvent is a write-only usage counter, one row per relayed chat
// message. It does NOT use BaseModel because event rows are never updated.
// Absence of a row is not an error: inserts are best-effort.
type AnalyticsEvent struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	TeamID    uuid.UUID  `json:"teamID" gorm:"type:uuid;not null;index"`
	UserID    *uuid.UUID `json:"userID,omitempty" gorm:"type:uuid;index"`
	EventType *string    `json:"eventType,omitempty" gorm:"type:varchar(50)"`
	CreatedAt time.Time  `json:"createdAt" gorm:"not null;index"`
}

func (e *AnalyticsEvent) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (AnalyticsEvent) TableName() string {
	return "analytics_events"
}

// AnalyticsExportCursor tracks the last successful export timestamp so
// the periodic object storage export only ships new rows.
type AnalyticsExportCursor struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	LastExportAt  time.Time `json:"lastExportAt" gorm:"not null"`
	ExportedCount int64     `json:"exportedCount" gorm:"not null;default:0"`
}

func (c *AnalyticsExportCursor) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (AnalyticsExportCursor) TableName() string {
	return "analytics_export_cursors"
}
