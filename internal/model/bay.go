package model

import "time"

// BayStatus is the administrative state of a bay.
type BayStatus string

const (
	BayAvailable BayStatus = "available"
	BayInactive  BayStatus = "inactive"
)

// Valid reports whether s is a known administrative status.
func (s BayStatus) Valid() bool {
	return s == BayAvailable || s == BayInactive
}

// Bay represents a physical repair bay.
type Bay struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	BayNumber   string    `gorm:"uniqueIndex;size:64;not null" json:"bayNumber"`
	Description string    `gorm:"size:512" json:"description"`
	Status      BayStatus `gorm:"size:16;not null;default:available" json:"status"`
	CreatedAt   time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null" json:"updatedAt"`
}
