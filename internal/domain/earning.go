package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Earning status values. Transitions: paid is terminal; held_in_treasury
// becomes claimed when a resolution completes; unresolved is a durable
// parking state against the sentinel persona, cleared by an operator.
const (
	EarningStatusPaid       = "paid"
	EarningStatusHeld       = "held_in_treasury"
	EarningStatusClaimed    = "claimed"
	EarningStatusUnresolved = "unresolved"
)

// Earning source types.
const (
	SourceTypeDownloadSale = "download_sale"
	SourceTypeRemixRoyalty = "remix_royalty"
)

// Earning is an immutable financial event. Only the status column is ever
// updated after creation (by the resolution protocol).
// The unique index over (source_id, source_type, persona_id) is the
// idempotency key for at-least-once delivery from revenue recorders.
type Earning struct {
	EarningID  uuid.UUID `gorm:"column:earning_id;type:uuid;primaryKey" json:"earning_id"`
	PersonaID  uuid.UUID `gorm:"column:persona_id;type:uuid;not null;index;uniqueIndex:idx_earnings_natural_key" json:"persona_id"`
	Amount     float64   `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	SourceType string    `gorm:"column:source_type;type:varchar(30);not null;uniqueIndex:idx_earnings_natural_key" json:"source_type"`
	SourceID   string    `gorm:"column:source_id;not null;uniqueIndex:idx_earnings_natural_key" json:"source_id"`
	Status     string    `gorm:"column:status;type:varchar(20);not null" json:"status"`
	TxHash     *string   `gorm:"column:tx_hash" json:"tx_hash"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Earning) TableName() string {
	return "Earnings"
}

func (e *Earning) BeforeCreate(tx *gorm.DB) error {
	if e.EarningID == uuid.Nil {
		e.EarningID = uuid.New()
	}
	return nil
}
