package models

import "time"

// RetentionWindow is how long a soft-deleted record stays restorable.
const RetentionWindow = 30 * 24 * time.Hour

// SoftDelete carries the recycle-bin state shared by products and users.
type SoftDelete struct {
	Deleted   bool       `db:"is_deleted" json:"deleted"`
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt"`
}

func (s SoftDelete) IsDeleted() bool { return s.Deleted }

func (s SoftDelete) DeletedTime() *time.Time { return s.DeletedAt }

// MarkDeleted flags the record as deleted at the given instant.
func (s *SoftDelete) MarkDeleted(at time.Time) {
	s.Deleted = true
	s.DeletedAt = &at
}

// Clear returns the record to the active state.
func (s *SoftDelete) Clear() {
	s.Deleted = false
	s.DeletedAt = nil
}

// SoftDeletable is implemented by every record the recycle bin manages.
type SoftDeletable interface {
	EntityID() int64
	IsDeleted() bool
	DeletedTime() *time.Time
}

// Expired reports whether a record deleted at deletedAt has outlived the
// retention window at now. A record without deletedAt never expires.
func Expired(deletedAt *time.Time, retention time.Duration, now time.Time) bool {
	if deletedAt == nil {
		return false
	}
	return now.Sub(*deletedAt) >= retention
}

// DaysRemaining is ceil((deletedAt + retention - now) / 24h), floored at 0.
// ok is false when deletedAt is unknown.
func DaysRemaining(deletedAt *time.Time, retention time.Duration, now time.Time) (days int, ok bool) {
	if deletedAt == nil {
		return 0, false
	}
	left := deletedAt.Add(retention).Sub(now)
	if left <= 0 {
		return 0, true
	}
	const day = 24 * time.Hour
	return int((left + day - 1) / day), true
}
