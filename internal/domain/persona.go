package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Persona is a named, wallet-bearing identity belonging to an Account.
// Balance is a denormalized cache of settled, unheld earnings; every mutation
// of it must be a single conditional UPDATE, never read-modify-write.
type Persona struct {
	PersonaID     uuid.UUID `gorm:"column:persona_id;type:uuid;primaryKey" json:"persona_id"`
	AccountID     uuid.UUID `gorm:"column:account_id;type:uuid;not null;index" json:"account_id"`
	Username      string    `gorm:"column:username;not null;uniqueIndex" json:"username"`
	DisplayName   string    `gorm:"column:display_name;not null" json:"display_name"`
	WalletAddress *string   `gorm:"column:wallet_address;uniqueIndex" json:"wallet_address"`
	StacksAddress *string   `gorm:"column:stacks_address;uniqueIndex" json:"stacks_address"`
	IsDefault     bool      `gorm:"column:is_default;not null;default:false" json:"is_default"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	IsPlaceholder bool      `gorm:"column:is_placeholder;not null;default:false" json:"is_placeholder"`
	Balance       float64   `gorm:"column:balance;type:decimal(18,2);not null;default:0" json:"balance"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (Persona) TableName() string {
	return "Personas"
}

func (p *Persona) BeforeCreate(tx *gorm.DB) error {
	if p.PersonaID == uuid.Nil {
		p.PersonaID = uuid.New()
	}
	return nil
}

// Wallet returns the persona's primary wallet address or "" when unassigned.
func (p *Persona) Wallet() string {
	if p.WalletAddress == nil {
		return ""
	}
	return *p.WalletAddress
}
