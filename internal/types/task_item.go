package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	TaskTypeTask     = "task"
	TaskTypeReminder = "reminder"
	TaskTypeNote     = "note"
)

const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

func ValidTaskType(t string) bool {
	switch t {
	case TaskTypeTask, TaskTypeReminder, TaskTypeNote:
		return true
	}
	return false
}

// ValidTaskPriority accepts the empty string: priority is nullable.
func ValidTaskPriority(p string) bool {
	switch p {
	case "", TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// TaskItem is created once by extraction and mutated only via completion
// toggle or field edit.
type TaskItem struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`

	IngestionID string `gorm:"column:ingestion_id;index" json:"ingestion_id,omitempty"`

	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"column:description" json:"description,omitempty"`
	Type        string `gorm:"not null;default:'task'" json:"type"`
	Priority    string `gorm:"column:priority" json:"priority,omitempty"`

	DueDate *time.Time `gorm:"column:due_date" json:"due_date,omitempty"`

	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TaskItem) TableName() string { return "task_item" }
