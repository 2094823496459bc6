package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletAlias retargets a wallet string (a resolved placeholder's wallet or
// its pending marker) to a real persona. The ledger consults this table
// before persona wallet columns when resolving a beneficiary.
type WalletAlias struct {
	AliasWallet       string    `gorm:"column:alias_wallet;primaryKey" json:"alias_wallet"`
	ResolvedPersonaID uuid.UUID `gorm:"column:resolved_persona_id;type:uuid;not null;index" json:"resolved_persona_id"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (WalletAlias) TableName() string {
	return "WalletAliases"
}
