package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/knoverse/backend/internal/models"
	"github.com/knoverse/backend/pkg/logger"
	"gorm.io/gorm"
)

func setupAnalyticsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger.Init()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMember{},
		&models.AnalyticsEvent{},
		&models.AnalyticsExportCursor{},
	)
	if err != nil {
		t.Fatalf("failed automigrating: %v", err)
	}

	return db
}

func TestNewAnalyticsService(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	service := NewAnalyticsService(db, nil)
	if service == nil {
		t.Fatal("expected non-nil service")
	}
	if service.DB != db {
		t.Fatal("expected DB to be set")
	}
}

func TestAnalyticsService_RecordMessageAsync(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	service := NewAnalyticsService(db, nil)

	teamID := uuid.New()
	userID := uuid.New()

	service.RecordMessageAsync(teamID, userID)

	time.Sleep(200 * time.Millisecond)

	var events []models.AnalyticsEvent
	db.Find(&events)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].TeamID != teamID {
		t.Fatalf("expected team %s, got %s", teamID, events[0].TeamID)
	}
	if events[0].UserID == nil || *events[0].UserID != userID {
		t.Fatalf("expected user %s, got %v", userID, events[0].UserID)
	}
	if events[0].EventType == nil || *events[0].EventType != "chat_message" {
		t.Fatalf("expected chat_message event type, got %v", events[0].EventType)
	}
	if events[0].CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}
}

func TestAnalyticsService_QueueOverflowDoesNotBlock(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	service := NewAnalyticsService(db, nil)

	teamID := uuid.New()
	userID := uuid.New()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 2000; i++ {
			service.RecordMessageAsync(teamID, userID)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RecordMessageAsync blocked on a full queue")
	}
}
