package visitors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// UniqueWindow is how long a fingerprint counts as the same visitor on a link.
const UniqueWindow = 24 * time.Hour

// fingerprintLength is the number of hex characters kept from the digest.
const fingerprintLength = 16

// Fingerprint derives the visitor key for an IP and User-Agent pair.
// The raw IP only ever enters the hash; it is never stored.
func Fingerprint(ipAddress, userAgent string) string {
	data := fmt.Sprintf("%s:%s", ipAddress, userAgent)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:fingerprintLength]
}

// IsUnique reports whether no click from fingerprint reached linkID in the
// 24 hours before at. Lookup errors count as unique.
//
// Within one process the lookup and the insert run under the write lock of
// sqlite.PerformWrite. Separate processes or writers sharing the database can
// still both count a first click as unique; no extra locking covers that and
// the over-count is accepted.
func IsUnique(db *gorm.DB, logger *slog.Logger, linkID uint, fingerprint string, at time.Time) bool {
	var count int64
	err := db.Table("click_events").
		Where("link_id = ? AND session_id = ? AND clicked_at > ? AND clicked_at <= ?",
			linkID, fingerprint, at.Add(-UniqueWindow), at).
		Count(&count).Error
	if err != nil {
		logger.Warn("Uniqueness lookup failed, counting click as unique",
			slog.Uint64("link_id", uint64(linkID)),
			slog.Any("error", err))
		return true
	}
	return count == 0
}
