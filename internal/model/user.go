package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// NotificationPreferences 用户的渠道开关
type NotificationPreferences struct {
	Email    bool `json:"email"`
	SMS      bool `json:"sms"`
	Calendar bool `json:"calendar"`
}

// SectorInterests 用户关注的板块
type SectorInterests struct {
	College    bool `json:"college"`
	Industry   bool `json:"industry"`
	Government bool `json:"government"`
}

type User struct {
	ID           int64                   `json:"id"`
	Name         string                  `json:"name"`
	Email        string                  `json:"email"`
	Phone        string                  `json:"phone"`
	PasswordHash string                  `json:"-"`
	Role         string                  `json:"role"`
	Sector       *string                 `json:"sector,omitempty"`
	Preferences  NotificationPreferences `json:"notification_preferences"`
	Interests    SectorInterests         `json:"interests"`
	CreatedAt    time.Time               `json:"created_at"`
}

// InterestedIn reports whether the user follows the given sector.
func (u *User) InterestedIn(sector string) bool {
	switch sector {
	case SectorCollege:
		return u.Interests.College
	case SectorIndustry:
		return u.Interests.Industry
	case SectorGovernment:
		return u.Interests.Government
	default:
		return false
	}
}
