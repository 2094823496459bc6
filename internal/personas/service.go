package personas

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"tunesplit-backend/internal/domain"
	"tunesplit-backend/internal/events"
	"tunesplit-backend/internal/pkg/apperr"
	"tunesplit-backend/internal/pkg/wallets"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PlaceholderPrefix is the reserved username prefix for auto-created
// placeholder ("TBD") personas.
const PlaceholderPrefix = "tbd-"

// SentinelUsername is the reserved persona that parks earnings whose
// beneficiary could not be resolved at all. Pending operator intervention;
// never withdrawable.
const SentinelUsername = "system-unresolved"

const maxUsernameVariants = 99

type Service struct {
	DB     *gorm.DB
	Events *events.Publisher
}

type CreatePersonaInput struct {
	AccountID   uuid.UUID
	Username    string
	DisplayName string
	Wallet      *string
}

// CreatePersona creates a persona under an account. The account's first
// active persona becomes the default.
func (s *Service) CreatePersona(ctx context.Context, in CreatePersonaInput) (*domain.Persona, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if username == "" {
		return nil, apperr.Validation("Username is required")
	}
	if strings.HasPrefix(username, PlaceholderPrefix) || username == SentinelUsername {
		return nil, apperr.Validation("Username prefix is reserved")
	}
	if in.Wallet != nil && !wallets.IsValidAddress(*in.Wallet) {
		return nil, apperr.Validation("Invalid wallet address format")
	}

	var persona *domain.Persona
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account domain.Account
		if err := tx.Where("account_id = ?", in.AccountID).First(&account).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Account not found")
			}
			return err
		}

		var taken int64
		if err := tx.Model(&domain.Persona{}).Where("username = ?", username).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return apperr.Conflict("Username already taken")
		}

		var active int64
		if err := tx.Model(&domain.Persona{}).
			Where("account_id = ? AND is_active = ?", in.AccountID, true).
			Count(&active).Error; err != nil {
			return err
		}

		p := &domain.Persona{
			AccountID:   in.AccountID,
			Username:    username,
			DisplayName: in.DisplayName,
			IsDefault:   active == 0,
			IsActive:    true,
		}
		if in.Wallet != nil {
			setWalletByChain(p, *in.Wallet)
		}
		if p.DisplayName == "" {
			p.DisplayName = username
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		persona = p
		return nil
	})
	return persona, err
}

// GetPersona loads a persona by ID.
func (s *Service) GetPersona(ctx context.Context, personaID uuid.UUID) (*domain.Persona, error) {
	var p domain.Persona
	if err := s.DB.WithContext(ctx).Where("persona_id = ?", personaID).First(&p).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("Persona not found")
		}
		return nil, err
	}
	return &p, nil
}

// ListForAccount returns all active personas of an account.
func (s *Service) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Persona, error) {
	var out []domain.Persona
	err := s.DB.WithContext(ctx).
		Where("account_id = ? AND is_active = ?", accountID, true).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// SetDefault makes personaID the account's default persona.
func (s *Service) SetDefault(ctx context.Context, accountID, personaID uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Persona
		if err := tx.Where("persona_id = ? AND account_id = ? AND is_active = ?", personaID, accountID, true).First(&p).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Persona not found")
			}
			return err
		}
		if p.IsPlaceholder {
			return apperr.Validation("A placeholder persona cannot be the default")
		}
		if err := tx.Model(&domain.Persona{}).
			Where("account_id = ? AND is_default = ?", accountID, true).
			UpdateColumn("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Persona{}).
			Where("persona_id = ?", personaID).
			UpdateColumn("is_default", true).Error
	})
}

// AssignWallet sets a persona's wallet once. Reassignment is a conflict, not
// an update; the only sanctioned rewrite is the merge resolution.
func (s *Service) AssignWallet(ctx context.Context, accountID, personaID uuid.UUID, wallet string) (*domain.Persona, error) {
	chain := wallets.ChainOf(wallet)
	if chain == "" {
		return nil, apperr.Validation("Invalid wallet address format")
	}

	var persona *domain.Persona
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Persona
		if err := tx.Where("persona_id = ? AND account_id = ? AND is_active = ?", personaID, accountID, true).First(&p).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Persona not found")
			}
			return err
		}
		if chain == wallets.ChainSui && p.WalletAddress != nil {
			return apperr.Conflict("Wallet address is already assigned")
		}
		if chain == wallets.ChainStacks && p.StacksAddress != nil {
			return apperr.Conflict("Wallet address is already assigned")
		}
		setWalletByChain(&p, wallet)
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		persona = &p
		return nil
	})
	return persona, err
}

// DeactivatePersona soft-deletes a persona. Defaults are handed to another
// active persona; deleting the last active persona deletes the account.
func (s *Service) DeactivatePersona(ctx context.Context, accountID, personaID uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Persona
		if err := tx.Where("persona_id = ? AND account_id = ?", personaID, accountID).First(&p).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Persona not found")
			}
			return err
		}
		if !p.IsActive {
			return apperr.Conflict("Persona is already inactive")
		}
		wasDefault := p.IsDefault
		if err := tx.Model(&domain.Persona{}).
			Where("persona_id = ?", personaID).
			UpdateColumns(map[string]interface{}{"is_active": false, "is_default": false}).Error; err != nil {
			return err
		}

		var remaining []domain.Persona
		if err := tx.Where("account_id = ? AND is_active = ?", accountID, true).
			Order("created_at ASC").Find(&remaining).Error; err != nil {
			return err
		}
		if len(remaining) == 0 {
			return tx.Where("account_id = ?", accountID).Delete(&domain.Account{}).Error
		}
		if wasDefault {
			// Prefer a non-placeholder persona as the new default.
			next := remaining[0]
			for _, r := range remaining {
				if !r.IsPlaceholder {
					next = r
					break
				}
			}
			return tx.Model(&domain.Persona{}).
				Where("persona_id = ?", next.PersonaID).
				UpdateColumn("is_default", true).Error
		}
		return nil
	})
}

// MaterializePlaceholder creates a placeholder persona for a named
// collaborator inside the caller's transaction: sanitized collision-checked
// username, generated implicit wallet, owned by the given account.
func (s *Service) MaterializePlaceholder(tx *gorm.DB, accountID uuid.UUID, name string) (*domain.Persona, error) {
	username, err := availableUsername(tx, PlaceholderPrefix+sanitizeUsername(name))
	if err != nil {
		return nil, err
	}
	wallet := wallets.GenerateAddress()
	p := &domain.Persona{
		AccountID:     accountID,
		Username:      username,
		DisplayName:   name,
		WalletAddress: &wallet,
		IsActive:      true,
		IsPlaceholder: true,
	}
	if err := tx.Create(p).Error; err != nil {
		return nil, err
	}
	log.Info().Str("persona_id", p.PersonaID.String()).Str("username", username).Msg("placeholder persona materialized")
	s.Events.Publish(tx.Statement.Context, events.TypePlaceholderMaterialized, map[string]interface{}{
		"persona_id": p.PersonaID,
		"account_id": accountID,
		"name":       name,
	})
	return p, nil
}

// EnsureSentinel returns the reserved unresolved-earnings persona, creating
// it (and its system account) on first use.
func (s *Service) EnsureSentinel(tx *gorm.DB) (*domain.Persona, error) {
	var p domain.Persona
	err := tx.Where("username = ?", SentinelUsername).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	account := &domain.Account{
		Email:    "system@tunesplit.io",
		Fullname: "System",
	}
	if err := tx.Where("email = ?", account.Email).FirstOrCreate(account).Error; err != nil {
		return nil, err
	}
	sentinel := &domain.Persona{
		AccountID:   account.AccountID,
		Username:    SentinelUsername,
		DisplayName: "Unresolved earnings",
		IsActive:    true,
	}
	if err := tx.Create(sentinel).Error; err != nil {
		return nil, err
	}
	return sentinel, nil
}

var usernameJunkRe = regexp.MustCompile(`[^a-z0-9]+`)

// sanitizeUsername lowercases and strips a display name down to a slug.
func sanitizeUsername(name string) string {
	slug := usernameJunkRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "collab"
	}
	return slug
}

// availableUsername returns base or the first numeric-suffixed variant that
// is free, giving up after 99 variants.
func availableUsername(tx *gorm.DB, base string) (string, error) {
	for i := 1; i <= maxUsernameVariants; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		var n int64
		if err := tx.Model(&domain.Persona{}).Where("username = ?", candidate).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return candidate, nil
		}
	}
	return "", apperr.Conflict("Could not find an available username")
}

// setWalletByChain stores addr in the column matching its chain.
func setWalletByChain(p *domain.Persona, addr string) {
	if wallets.ChainOf(addr) == wallets.ChainStacks {
		p.StacksAddress = &addr
		return
	}
	p.WalletAddress = &addr
}
