package auth

import (
	"errors"

	"tunesplit-backend/internal/domain"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailPasswordRequired = errors.New("Email and password are required")
	ErrInvalidEmail          = errors.New("Invalid Email")
	ErrIncorrectPassword     = errors.New("Incorrect Password")
	ErrNotAuthenticated      = errors.New("Not authenticated")
)

// LoginInput for login request body.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AccountFinder abstracts account lookup by email+password (GORM in
// production, doubles in tests).
type AccountFinder interface {
	FindByEmailAndPassword(email, password string) (*domain.Account, error)
}

// GormAccountFinder implements AccountFinder using GORM and bcrypt.
type GormAccountFinder struct{ DB *gorm.DB }

func (g *GormAccountFinder) FindByEmailAndPassword(email, password string) (*domain.Account, error) {
	return LoginAccount(g.DB, LoginInput{Email: email, Password: password})
}

// LoginAccount finds an account by email and verifies its password.
func LoginAccount(db *gorm.DB, input LoginInput) (*domain.Account, error) {
	if input.Email == "" || input.Password == "" {
		return nil, ErrEmailPasswordRequired
	}
	var a domain.Account
	if err := db.Where("email = ?", input.Email).First(&a).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrInvalidEmail
		}
		return nil, err
	}
	if a.PasswordHash == "" {
		return nil, ErrInvalidEmail
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrIncorrectPassword
	}
	return &a, nil
}

// DefaultPersonaID returns the account's default persona id, or nil when the
// account has none yet.
func DefaultPersonaID(db *gorm.DB, account *domain.Account) *string {
	var p domain.Persona
	err := db.Where("account_id = ? AND is_default = ? AND is_active = ?", account.AccountID, true, true).First(&p).Error
	if err != nil {
		return nil
	}
	s := p.PersonaID.String()
	return &s
}
