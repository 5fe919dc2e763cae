package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	IngestionStatusPending    = "pending"
	IngestionStatusProcessing = "processing"
	IngestionStatusCompleted  = "completed"
	IngestionStatusFailed     = "failed"
)

const (
	// VoiceIngestionPrefix marks ids of uploaded-audio records.
	VoiceIngestionPrefix = "ing_"
	// TextIngestionPrefix marks ids of typed submissions so they are never
	// confused with a voice-originated id.
	TextIngestionPrefix = "text_"
)

func NewVoiceIngestionID() string { return VoiceIngestionPrefix + uuid.NewString() }
func NewTextIngestionID() string  { return TextIngestionPrefix + uuid.NewString() }

// Ingestion is one user-submitted audio or text item tracked through the
// pipeline. All durable pipeline state lives on this record.
type Ingestion struct {
	ID      string    `gorm:"primaryKey" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`

	Status string `gorm:"not null;default:'pending'" json:"status"`

	OriginalFilename string  `gorm:"column:original_filename" json:"original_filename"`
	FileSizeBytes    int64   `gorm:"column:file_size_bytes" json:"file_size_bytes"`
	DurationSeconds  float64 `gorm:"column:duration_seconds" json:"duration_seconds"`
	AudioFormat      string  `gorm:"column:audio_format" json:"audio_format"`
	Language         string  `gorm:"column:language" json:"language"`

	Transcript string         `gorm:"column:transcript" json:"transcript"`
	Segments   datatypes.JSON `gorm:"column:segments;type:jsonb" json:"segments"`
	Confidence float64        `gorm:"column:confidence" json:"confidence"`

	ErrorMessage string `gorm:"column:error_message" json:"error_message"`

	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (Ingestion) TableName() string { return "ingestion" }

// IsTerminal reports whether no further status transitions may occur.
func (i *Ingestion) IsTerminal() bool {
	return i.Status == IngestionStatusCompleted || i.Status == IngestionStatusFailed
}

// IsTextSubmission reports whether the record came through the typed path.
func (i *Ingestion) IsTextSubmission() bool {
	return strings.HasPrefix(i.ID, TextIngestionPrefix)
}

// TranscriptSegment is one time-aligned span of the transcript, stored in
// order inside the segments JSON column.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
