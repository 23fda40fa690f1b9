package models

type Team struct {
	BaseModel
	Name        string           `json:"name" gorm:"type:varchar(150);uniqueIndex;not null"`
	Description *string          `json:"description,omitempty" gorm:"type:text"`
	Members     []TeamMember     `json:"members,omitempty" gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
	Files       []TeamFile       `json:"-" gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
	Sessions    []ChatSession    `json:"-" gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
	Events      []AnalyticsEvent `json:"-" gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
}
