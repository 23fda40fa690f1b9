package models

import "github.com/google/uuid"

// ChatSession is one conversation thread between a user and the inference
// backend, scoped to a team. UpdatedAt doubles as the last-activity
// timestamp and is touched after every successfully relayed message.
type ChatSession struct {
	BaseModel
	TeamID uuid.UUID `json:"teamID" gorm:"type:uuid;not null;index"`
	UserID uuid.UUID `json:"userID" gorm:"type:uuid;not null;index"`
	Title  *string   `json:"title,omitempty" gorm:"type:varchar(255)"`

	Team     Team          `json:"-" gorm:"foreignKey:TeamID"`
	User     User          `json:"-" gorm:"foreignKey:UserID"`
	Messages []ChatMessage `json:"-" gorm:"foreignKey:ChatSessionID;constraint:OnDelete:CASCADE"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
