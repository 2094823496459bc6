package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClaimToken is a single-use token binding a placeholder persona to the
// account that may hand it off. RedeemedAt doubles as the exactly-once guard.
type ClaimToken struct {
	Token                string     `gorm:"column:token;primaryKey" json:"token"`
	PlaceholderPersonaID uuid.UUID  `gorm:"column:placeholder_persona_id;type:uuid;not null;index" json:"placeholder_persona_id"`
	AccountID            uuid.UUID  `gorm:"column:account_id;type:uuid;not null" json:"account_id"`
	ExpiresAt            time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	RedeemedAt           *time.Time `gorm:"column:redeemed_at" json:"redeemed_at"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

func (ClaimToken) TableName() string {
	return "ClaimTokens"
}
