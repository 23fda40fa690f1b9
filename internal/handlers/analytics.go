package handlers

import (
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/knoverse/backend/pkg/utils"
	"gorm.io/gorm"
)

type AnalyticsHandler struct {
	DB *gorm.DB
}

func NewAnalyticsHandler(db *gorm.DB) *AnalyticsHandler {
	return &AnalyticsHandler{DB: db}
}

type teamUsageStat struct {
	TeamID        uuid.UUID `json:"teamId"`
	TeamName      string    `json:"teamName"`
	UserCount     int64     `json:"userCount"`
	ActivityCount int64     `json:"activityCount"`
}

// Usage merges member counts and event counts per team, most active first.
func (h *AnalyticsHandler) Usage(c *fiber.Ctx) error {
	var userRows []struct {
		TeamID    uuid.UUID
		TeamName  string
		UserCount int64
	}
	if err := h.DB.Table("team_members").
		Select("team_members.team_id, teams.name AS team_name, COUNT(team_members.user_id) AS user_count").
		Joins("LEFT JOIN teams ON teams.id = team_members.team_id").
		Group("team_members.team_id, teams.name").
		Scan(&userRows).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading usage data")
	}

	var eventRows []struct {
		TeamID        uuid.UUID
		TeamName      string
		ActivityCount int64
	}
	if err := h.DB.Table("analytics_events").
		Select("analytics_events.team_id, teams.name AS team_name, COUNT(analytics_events.id) AS activity_count").
		Joins("LEFT JOIN teams ON teams.id = analytics_events.team_id").
		Group("analytics_events.team_id, teams.name").
		Scan(&eventRows).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading usage data")
	}

	statsByTeam := map[uuid.UUID]*teamUsageStat{}
	for _, row := range userRows {
		statsByTeam[row.TeamID] = &teamUsageStat{
			TeamID:    row.TeamID,
			TeamName:  row.TeamName,
			UserCount: row.UserCount,
		}
	}
	for _, row := range eventRows {
		if stat, ok := statsByTeam[row.TeamID]; ok {
			stat.ActivityCount = row.ActivityCount
			continue
		}
		statsByTeam[row.TeamID] = &teamUsageStat{
			TeamID:        row.TeamID,
			TeamName:      row.TeamName,
			ActivityCount: row.ActivityCount,
		}
	}

	stats := make([]teamUsageStat, 0, len(statsByTeam))
	for _, stat := range statsByTeam {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].ActivityCount > stats[j].ActivityCount
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"teamStats": stats})
}

type teamActivityStat struct {
	TeamID     uuid.UUID `json:"teamId"`
	TeamName   string    `json:"teamName"`
	EventCount int64     `json:"eventCount"`
}

// Activity returns the five most active teams by event count.
func (h *AnalyticsHandler) Activity(c *fiber.Ctx) error {
	var rows []teamActivityStat
	if err := h.DB.Table("analytics_events").
		Select("analytics_events.team_id, teams.name AS team_name, COUNT(analytics_events.id) AS event_count").
		Joins("LEFT JOIN teams ON teams.id = analytics_events.team_id").
		Group("analytics_events.team_id, teams.name").
		Order("event_count DESC").
		Limit(5).
		Scan(&rows).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading activity data")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"topTeams": rows})
}
