package model

import "time"

// RepairOrder is the parent order a task belongs to. Scheduling only reads it.
type RepairOrder struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	OrderNumber  string    `gorm:"uniqueIndex;size:64;not null" json:"orderNumber"`
	CustomerName string    `gorm:"size:256" json:"customerName"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
}
