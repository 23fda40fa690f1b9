package models

import "github.com/google/uuid"

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleAdmin     ChatRole = "admin"
)

// ChatMessage rows are append-only and ordered by CreatedAt. The inference
// service writes them after answering; this service only reads them back
// for the history endpoint.
type ChatMessage struct {
	BaseModel
	ChatSessionID uuid.UUID `json:"chatSessionID" gorm:"type:uuid;not null;index"`
	Role          ChatRole  `json:"role" gorm:"type:varchar(20);not null"`
	Content       string    `json:"content" gorm:"type:text;not null"`
	Citations     *string   `json:"citations,omitempty" gorm:"type:text"`
	Confidence    *float64  `json:"confidence,omitempty"`
	LatencyMS     *int64    `json:"latencyMS,omitempty"`

	ChatSession ChatSession `json:"-" gorm:"foreignKey:ChatSessionID"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
