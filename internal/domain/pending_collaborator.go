package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Split group types.
const (
	SplitTypeComposition = "composition"
	SplitTypeProduction  = "production"
)

// PendingCollaborator statuses.
const (
	CollaboratorStatusPending  = "pending"
	CollaboratorStatusResolved = "resolved"
)

// PendingCollaborator is a named-but-unresolved split entry, recorded apart
// from the content record so it can be resolved without rewriting content
// metadata.
type PendingCollaborator struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ContentID        string    `gorm:"column:content_id;not null;index" json:"content_id"`
	Name             string    `gorm:"column:name;not null" json:"name"`
	Percentage       int       `gorm:"column:percentage;not null" json:"percentage"`
	SplitType        string    `gorm:"column:split_type;type:varchar(20);not null" json:"split_type"`
	Position         int       `gorm:"column:position;not null" json:"position"`
	Status           string    `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	CreatorAccountID uuid.UUID `gorm:"column:creator_account_id;type:uuid;not null" json:"creator_account_id"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (PendingCollaborator) TableName() string {
	return "PendingCollaborators"
}

func (p *PendingCollaborator) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
