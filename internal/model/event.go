package model

import "time"

// Sector 事件所属板块
const (
	SectorCollege    = "college"
	SectorIndustry   = "industry"
	SectorGovernment = "government"
)

// Categories 事件类别
var Categories = []string{
	"fest",
	"symposium",
	"webinar",
	"workshop",
	"recruitment",
	"tech-summit",
	"public-event",
	"seminar",
	"other",
}

type Location struct {
	Address string   `json:"address"`
	City    string   `json:"city"`
	State   string   `json:"state"`
	ZipCode string   `json:"zip_code"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

type Event struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Sector           string    `json:"sector"`
	Category         string    `json:"category"`
	EventDate        time.Time `json:"event_date"`
	EventTime        string    `json:"event_time"`
	Location         Location  `json:"location"`
	RegistrationLink string    `json:"registration_link"`
	Capacity         *int      `json:"capacity,omitempty"`
	CreatedBy        int64     `json:"created_by"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

// ValidSector reports whether s is one of the three sectors.
func ValidSector(s string) bool {
	return s == SectorCollege || s == SectorIndustry || s == SectorGovernment
}

// ValidCategory reports whether c is a known event category.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
