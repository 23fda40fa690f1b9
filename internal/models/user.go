package models

type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"
	UserRoleMember  UserRole = "member"
)

// Role is the sole authorization signal in the system: admin unlocks the
// management surface, manager and member only differ in the UI.
type User struct {
	BaseModel
	Email        string           `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string           `json:"-" gorm:"type:text;not null"`
	FullName     string           `json:"fullName" gorm:"type:varchar(150);not null"`
	Role         UserRole         `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	Memberships  []TeamMember     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ChatSessions []ChatSession    `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Events       []AnalyticsEvent `json:"-" gorm:"foreignKey:UserID"`
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

func ValidUserRole(role UserRole) bool {
	switch role {
	case UserRoleAdmin, UserRoleManager, UserRoleMember:
		return true
	default:
		return false
	}
}
