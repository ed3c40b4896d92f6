package model

import "time"

// TaskKind only affects display.
type TaskKind string

const (
	TaskInspection TaskKind = "inspection"
	TaskService    TaskKind = "service"
)

// Valid reports whether k is a known task kind.
func (k TaskKind) Valid() bool {
	return k == TaskInspection || k == TaskService
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskUnscheduled TaskStatus = "unscheduled"
	TaskScheduled   TaskStatus = "scheduled"
	TaskRescheduled TaskStatus = "rescheduled"
	TaskInProgress  TaskStatus = "in_progress"
	TaskCompleted   TaskStatus = "completed"
)

// ActiveStatuses are the statuses whose windows take part in conflict checks.
var ActiveStatuses = []TaskStatus{TaskScheduled, TaskRescheduled, TaskInProgress}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskUnscheduled, TaskScheduled, TaskRescheduled, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// Assignment records who works on a task. The scheduler does not interpret it.
type Assignment struct {
	TechnicianID string `json:"technicianId"`
	Role         string `json:"role"`
}

// Task is a schedulable unit of work bound to a repair order.
type Task struct {
	ID            string       `gorm:"primaryKey;size:36" json:"id"`
	OrderID       string       `gorm:"index;size:36;not null" json:"orderId"`
	Kind          TaskKind     `gorm:"size:16;not null" json:"kind"`
	BayID         *string      `gorm:"index:idx_tasks_bay_status;size:36" json:"bayId"`
	ExpectedStart *time.Time   `json:"expectedStart"`
	ExpectedEnd   *time.Time   `json:"expectedEnd"`
	ActualStart   *time.Time   `json:"actualStart"`
	ActualEnd     *time.Time   `json:"actualEnd"`
	Status        TaskStatus   `gorm:"index:idx_tasks_bay_status;size:16;not null" json:"status"`
	Assignments   []Assignment `gorm:"serializer:json" json:"assignments"`
	Version       int64        `gorm:"not null;default:0" json:"version"`
	CreatedAt     time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updatedAt"`

	// Associations
	Order *RepairOrder `gorm:"foreignKey:OrderID" json:"order,omitempty"`
}
