package models

import (
	"strconv"
	"time"
)

// BaseModel defines the common fields for all models.
// Rows are hard deleted: friendships and notifications are removed outright and the
// unique pair indexes must not be shadowed by soft-deleted rows.
type BaseModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IDString returns the ID as a string.
func (b *BaseModel) IDString() string {
	return strconv.FormatUint(uint64(b.ID), 10)
}

// CanonicalPair orders two user ids so that the smaller comes first.
// Unordered pairs (friendships, conversations) are stored in this form.
func CanonicalPair(a, b uint) (low, high uint) {
	if a > b {
		return b, a
	}
	return a, b
}
