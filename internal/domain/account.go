package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is the top-level owner of one or more personas.
type Account struct {
	AccountID    uuid.UUID      `gorm:"column:account_id;type:uuid;primaryKey" json:"account_id"`
	Email        string         `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash string         `gorm:"column:password_hash;not null" json:"-"`
	Fullname     string         `gorm:"column:fullname;not null" json:"fullname"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Account) TableName() string {
	return "Accounts"
}

// BeforeCreate sets account_id for DBs without gen_random_uuid.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.AccountID == uuid.Nil {
		a.AccountID = uuid.New()
	}
	return nil
}
