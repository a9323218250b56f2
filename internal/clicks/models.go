package clicks

import (
	"fmt"
	"strings"
	"time"

	"linkpulse/internal/links"
)

// ClickEvent is one tracked visit to a short link. Rows are written once by
// the recorder and only disappear when their link is deleted.
type ClickEvent struct {
	ID     uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	LinkID uint        `gorm:"index:idx_click_link_time;not null" json:"link_id"`
	Link   *links.Link `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"-"`

	// Network; the address is always masked before it gets here
	IPAddress string  `gorm:"size:64" json:"ip_address"`
	UserAgent string  `gorm:"type:text" json:"user_agent"`
	Referer   *string `gorm:"type:text" json:"referer"`

	// Geography
	Country     *string  `gorm:"size:100;index" json:"country"`
	CountryCode *string  `gorm:"size:2" json:"country_code"`
	City        *string  `gorm:"size:100" json:"city"`
	Region      *string  `gorm:"size:100" json:"region"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Timezone    *string  `gorm:"size:50" json:"timezone"`
	ISP         *string  `gorm:"size:200" json:"isp"`

	// Browser
	BrowserName    *string `gorm:"size:100" json:"browser_name"`
	BrowserVersion *string `gorm:"size:50" json:"browser_version"`
	BrowserFamily  *string `gorm:"size:100" json:"browser_family"`

	// Operating system
	OSName    *string `gorm:"size:100" json:"os_name"`
	OSVersion *string `gorm:"size:50" json:"os_version"`
	OSFamily  *string `gorm:"size:100" json:"os_family"`

	// Device
	DeviceType       string  `gorm:"size:20;index;not null;default:'Unknown'" json:"device_type"`
	DeviceBrand      *string `gorm:"size:100" json:"device_brand"`
	DeviceModel      *string `gorm:"size:100" json:"device_model"`
	DeviceFamily     *string `gorm:"size:100" json:"device_family"`
	ScreenResolution *string `gorm:"size:20" json:"screen_resolution"`

	IsUnique  bool    `gorm:"not null" json:"is_unique"`
	IsBot     bool    `gorm:"not null" json:"is_bot"`
	SessionID *string `gorm:"size:64;index" json:"session_id"`

	ClickedAt   time.Time `gorm:"index:idx_click_link_time;not null" json:"clicked_at"`
	ProcessedAt time.Time `json:"processed_at"`
}

// TableName pins the table name used by raw queries elsewhere.
func (ClickEvent) TableName() string {
	return "click_events"
}

// DeviceInfo renders brand, model and type, e.g. "Apple iPhone (Mobile)".
func (e *ClickEvent) DeviceInfo() string {
	var parts []string
	if e.DeviceBrand != nil && *e.DeviceBrand != "" {
		parts = append(parts, *e.DeviceBrand)
	}
	if e.DeviceModel != nil && *e.DeviceModel != "" {
		parts = append(parts, *e.DeviceModel)
	}
	if e.DeviceType != "" {
		parts = append(parts, fmt.Sprintf("(%s)", e.DeviceType))
	}
	if len(parts) == 0 {
		return "Unknown Device"
	}
	return strings.Join(parts, " ")
}

func nameWithVersion(name, version *string, fallback string) string {
	switch {
	case name != nil && *name != "" && version != nil && *version != "":
		return *name + " " + *version
	case name != nil && *name != "":
		return *name
	default:
		return fallback
	}
}

// BrowserInfo renders "Chrome 120.0" or "Unknown Browser".
func (e *ClickEvent) BrowserInfo() string {
	return nameWithVersion(e.BrowserName, e.BrowserVersion, "Unknown Browser")
}

// OSInfo renders "iOS 16.2" or "Unknown OS".
func (e *ClickEvent) OSInfo() string {
	return nameWithVersion(e.OSName, e.OSVersion, "Unknown OS")
}

// LocationInfo renders "City, Region, Country" skipping unknown parts.
func (e *ClickEvent) LocationInfo() string {
	var parts []string
	for _, p := range []*string{e.City, e.Region, e.Country} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	if len(parts) == 0 {
		return "Unknown Location"
	}
	return strings.Join(parts, ", ")
}
