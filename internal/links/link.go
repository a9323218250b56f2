package links

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// ErrLinkNotFound is returned when no link matches the lookup.
var ErrLinkNotFound = errors.New("link not found")

// Link is a short code pointing at a destination URL.
type Link struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	URL          string     `gorm:"type:text;not null" json:"url"`
	ShortCode    string     `gorm:"uniqueIndex;size:32;not null" json:"short_code"`
	UserID       *uint      `gorm:"index" json:"user_id"`
	ClickCount   int64      `gorm:"not null;default:0" json:"click_count"`
	UniqueClicks int64      `gorm:"not null;default:0" json:"unique_clicks"`
	LastClicked  *time.Time `json:"last_clicked"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Summary is the link metadata embedded in analytics reports.
type Summary struct {
	ID           uint      `json:"id"`
	URL          string    `json:"url"`
	ShortCode    string    `json:"short_code"`
	CreatedAt    time.Time `json:"created_at"`
	ClickCount   int64     `json:"click_count"`
	UniqueClicks int64     `json:"unique_clicks"`
}

// Summary returns the report view of the link.
func (l *Link) Summary() Summary {
	return Summary{
		ID:           l.ID,
		URL:          l.URL,
		ShortCode:    l.ShortCode,
		CreatedAt:    l.CreatedAt,
		ClickCount:   l.ClickCount,
		UniqueClicks: l.UniqueClicks,
	}
}

// CreateLink stores a new link. CreatedAt and UpdatedAt are set here.
func CreateLink(db *gorm.DB, logger *slog.Logger, link *Link) error {
	if link.URL == "" {
		return errors.New("link url cannot be empty")
	}
	if link.ShortCode == "" {
		return errors.New("link short code cannot be empty")
	}

	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now

	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(link).Error
	})
}

// GetByShortCode looks a link up by its short code.
func GetByShortCode(db *gorm.DB, code string) (*Link, error) {
	var link Link
	if err := db.Where("short_code = ?", code).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link by short code: %w", err)
	}
	return &link, nil
}

// GetByID looks a link up by primary key.
func GetByID(db *gorm.DB, id uint) (*Link, error) {
	var link Link
	if err := db.First(&link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return &link, nil
}

// GetForOwner returns the link only when it belongs to userID.
// Links owned by someone else are reported as not found.
func GetForOwner(db *gorm.DB, id, userID uint) (*Link, error) {
	var link Link
	err := db.Where("id = ? AND user_id = ?", id, userID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link for owner: %w", err)
	}
	return &link, nil
}

// ListForOwner returns every link owned by userID, newest first.
func ListForOwner(db *gorm.DB, userID uint) ([]Link, error) {
	var result []Link
	if err := db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&result).Error; err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return result, nil
}

// IncrementCounters bumps the click counters inside an existing transaction.
// unique_clicks only moves when the click was judged unique.
func IncrementCounters(tx *gorm.DB, linkID uint, unique bool, at time.Time) error {
	updates := map[string]interface{}{
		"click_count":  gorm.Expr("click_count + 1"),
		"last_clicked": at,
		"updated_at":   at,
	}
	if unique {
		updates["unique_clicks"] = gorm.Expr("unique_clicks + 1")
	}

	result := tx.Model(&Link{}).Where("id = ?", linkID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to increment link counters: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// RecordFallbackClick counts a click whose event could not be recorded.
// No click event row is written.
func RecordFallbackClick(db *gorm.DB, logger *slog.Logger, linkID uint) error {
	now := time.Now().UTC()
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return IncrementCounters(tx, linkID, false, now)
	})
}

// DeleteLink removes a link. Its click events go with it through the cascade.
func DeleteLink(db *gorm.DB, logger *slog.Logger, id uint) error {
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		result := tx.Delete(&Link{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrLinkNotFound
		}
		return nil
	})
}
