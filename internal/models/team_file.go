package models

import "github.com/google/uuid"

// TeamFile is a document uploaded for a team. ObjectName references the
// stored object in the blob bucket; a row is only created after the object
// exists, so orphan rows can only appear through failed deletions.
type TeamFile struct {
	BaseModel
	TeamID     uuid.UUID `json:"teamID" gorm:"type:uuid;not null;index"`
	Name       string    `json:"name" gorm:"type:varchar(255);not null"`
	MimeType   string    `json:"mimeType" gorm:"type:varchar(255);not null"`
	Size       int64     `json:"size" gorm:"not null;default:0"`
	ObjectName string    `json:"objectName" gorm:"type:text;not null"`

	Team Team `json:"team,omitempty" gorm:"foreignKey:TeamID"`
}

func (TeamFile) TableName() string {
	return "team_files"
}
