package models

import "github.com/google/uuid"

// TeamMember joins users to teams. Deleting either side cascades to the row.
type TeamMember struct {
	BaseModel
	UserID uuid.UUID `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_team"`
	TeamID uuid.UUID `json:"teamID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_team"`
	User   User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Team   Team      `json:"team,omitempty" gorm:"foreignKey:TeamID"`
}

func (TeamMember) TableName() string {
	return "team_members"
}
