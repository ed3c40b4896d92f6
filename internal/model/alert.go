package model

import "time"

// IntegrityAlert is an operator-facing record of overlapping active tasks on one bay.
type IntegrityAlert struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BayID      string    `gorm:"index;size:36;not null" json:"bayId"`
	TaskIDs    []string  `gorm:"serializer:json" json:"taskIds"`
	Reason     string    `gorm:"size:512;not null" json:"reason"`
	DetectedAt time.Time `gorm:"index;not null" json:"detectedAt"`
}
