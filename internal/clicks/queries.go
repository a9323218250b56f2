package clicks

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ForLinkSince returns the link's clicks newer than since, oldest first.
func ForLinkSince(db *gorm.DB, linkID uint, since time.Time) ([]ClickEvent, error) {
	var events []ClickEvent
	err := db.Where("link_id = ? AND clicked_at > ?", linkID, since.UTC()).
		Order("clicked_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load clicks for link %d: %w", linkID, err)
	}
	return events, nil
}

// ListForLink pages through all of a link's clicks, newest first, and
// returns the unpaged total.
func ListForLink(db *gorm.DB, linkID uint, limit, offset int) ([]ClickEvent, int64, error) {
	var total int64
	if err := db.Model(&ClickEvent{}).Where("link_id = ?", linkID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count clicks for link %d: %w", linkID, err)
	}

	var events []ClickEvent
	err := db.Where("link_id = ?", linkID).
		Order("clicked_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clicks for link %d: %w", linkID, err)
	}
	return events, total, nil
}

// RecentForOwner returns the newest clicks across every link owned by
// userID since the cutoff, with the link preloaded.
func RecentForOwner(db *gorm.DB, userID uint, since time.Time, limit int) ([]ClickEvent, error) {
	var events []ClickEvent
	err := db.Joins("JOIN links ON links.id = click_events.link_id").
		Where("links.user_id = ? AND click_events.clicked_at > ?", userID, since.UTC()).
		Order("click_events.clicked_at DESC, click_events.id DESC").
		Limit(limit).
		Preload("Link").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent clicks for user %d: %w", userID, err)
	}
	return events, nil
}

// CountForLink returns how many clicks the link has stored.
func CountForLink(db *gorm.DB, linkID uint) (int64, error) {
	var total int64
	if err := db.Model(&ClickEvent{}).Where("link_id = ?", linkID).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count clicks for link %d: %w", linkID, err)
	}
	return total, nil
}
