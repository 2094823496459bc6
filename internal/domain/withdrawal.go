package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Withdrawal statuses. A reconcile_pending row keeps its debit until an
// operator (or a retry) settles it; it is never auto-refunded.
const (
	WithdrawalStatusPending          = "pending"
	WithdrawalStatusCompleted        = "completed"
	WithdrawalStatusFailed           = "failed"
	WithdrawalStatusReconcilePending = "reconcile_pending"
)

// Withdrawal is the persisted reservation for a payout. It is created in the
// same transaction that debits the persona balance, so a crash between debit
// and execution confirmation never loses the debit record.
type Withdrawal struct {
	WithdrawalID       uuid.UUID `gorm:"column:withdrawal_id;type:uuid;primaryKey" json:"withdrawal_id"`
	PersonaID          uuid.UUID `gorm:"column:persona_id;type:uuid;not null;index" json:"persona_id"`
	Amount             float64   `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	DestinationAddress string    `gorm:"column:destination_address;not null" json:"destination_address"`
	Chain              string    `gorm:"column:chain;type:varchar(10);not null" json:"chain"`
	Status             string    `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	TxHash             *string   `gorm:"column:tx_hash" json:"tx_hash"`
	FailureReason      *string   `gorm:"column:failure_reason" json:"failure_reason"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (Withdrawal) TableName() string {
	return "Withdrawals"
}

func (w *Withdrawal) BeforeCreate(tx *gorm.DB) error {
	if w.WithdrawalID == uuid.Nil {
		w.WithdrawalID = uuid.New()
	}
	return nil
}
