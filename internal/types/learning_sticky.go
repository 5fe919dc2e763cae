package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LearningSticky is a single concept/definition/example card. Domain is a
// soft grouping label, not a foreign-keyed entity; it is nullable only for
// legacy pre-domain rows and can be renamed by a bulk relabel.
type LearningSticky struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`

	Domain *string `gorm:"column:domain;index" json:"domain"`

	Concept    string `gorm:"not null" json:"concept"`
	Definition string `gorm:"not null" json:"definition"`
	Example    string `gorm:"column:example" json:"example,omitempty"`

	RelatedTerms datatypes.JSON `gorm:"column:related_terms;type:jsonb" json:"related_terms"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (LearningSticky) TableName() string { return "learning_sticky" }
