package resolution

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"math"
	"time"

	"tunesplit-backend/internal/catalog"
	"tunesplit-backend/internal/domain"
	"tunesplit-backend/internal/events"
	"tunesplit-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const claimExpiry = 7 * 24 * time.Hour

// Resolution methods, recorded on the published event.
const (
	MethodClaim = "invite_claim"
	MethodLink  = "link"
	MethodMerge = "merge"
)

type Service struct {
	DB           *gorm.DB
	Catalog      catalog.Catalog
	Events       *events.Publisher
	ClaimBaseURL string
}

// GenerateClaimLink creates a single-use claim token for a placeholder the
// actor owns and returns the claim URL. No ledger state changes.
func (s *Service) GenerateClaimLink(ctx context.Context, placeholderID, actorAccountID uuid.UUID) (string, error) {
	var url string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		placeholder, err := loadPlaceholder(tx, placeholderID, actorAccountID)
		if err != nil {
			return err
		}
		token := &domain.ClaimToken{
			Token:                randomHex(32),
			PlaceholderPersonaID: placeholder.PersonaID,
			AccountID:            actorAccountID,
			ExpiresAt:            time.Now().Add(claimExpiry),
		}
		if err := tx.Create(token).Error; err != nil {
			return err
		}
		url = s.ClaimBaseURL + "/claim/" + token.Token
		return nil
	})
	return url, err
}

// RedeemClaim completes an invite-claim: exactly once per token, the
// placeholder's held earnings move to the redeeming persona's balance and
// the placeholder goes inactive. A second redemption attempt fails with no
// ledger effect.
func (s *Service) RedeemClaim(ctx context.Context, token string, targetPersonaID uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ct domain.ClaimToken
		if err := tx.Where("token = ?", token).First(&ct).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Invalid claim token")
			}
			return err
		}
		if ct.RedeemedAt != nil {
			return apperr.Conflict("Claim has already been redeemed")
		}
		if time.Now().After(ct.ExpiresAt) {
			return apperr.Validation("Claim token has expired")
		}
		// Conditional update is the exactly-once guard under concurrent
		// redemption attempts.
		res := tx.Model(&domain.ClaimToken{}).
			Where("token = ? AND redeemed_at IS NULL", token).
			UpdateColumn("redeemed_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("Claim has already been redeemed")
		}

		target, err := loadTarget(tx, targetPersonaID)
		if err != nil {
			return err
		}
		moved, err := s.transitionFunds(tx, ct.PlaceholderPersonaID, target)
		if err != nil {
			return err
		}
		s.publish(ctx, MethodClaim, ct.PlaceholderPersonaID, target.PersonaID, moved)
		return nil
	})
}

// LinkPlaceholder retargets a placeholder to an existing independent persona:
// held funds move now, and an alias routes all future postings against the
// placeholder's wallet straight to the target.
func (s *Service) LinkPlaceholder(ctx context.Context, placeholderID, targetPersonaID, actorAccountID uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		placeholder, err := loadPlaceholder(tx, placeholderID, actorAccountID)
		if err != nil {
			return err
		}
		target, err := loadTarget(tx, targetPersonaID)
		if err != nil {
			return err
		}
		if target.AccountID == actorAccountID {
			return apperr.Validation("Use merge for personas you own")
		}
		moved, err := s.transitionFunds(tx, placeholder.PersonaID, target)
		if err != nil {
			return err
		}
		if err := retargetAliases(tx, placeholder, target.PersonaID); err != nil {
			return err
		}
		s.publish(ctx, MethodLink, placeholder.PersonaID, target.PersonaID, moved)
		return nil
	})
}

// MergePlaceholder resolves "this is me": the placeholder is one of the
// actor's own personas. Same fund transition and alias as link, plus every
// content split entry referencing the placeholder's wallet is rewritten to
// the target's wallet through the catalog.
func (s *Service) MergePlaceholder(ctx context.Context, placeholderID, ownerPersonaID, actorAccountID uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		placeholder, err := loadPlaceholder(tx, placeholderID, actorAccountID)
		if err != nil {
			return err
		}
		target, err := loadTarget(tx, ownerPersonaID)
		if err != nil {
			return err
		}
		if target.AccountID != actorAccountID {
			return apperr.Validation("Merge target must be one of your own personas")
		}

		// The one sanctioned wallet rewrite: a walletless target adopts the
		// placeholder's implicit wallet so existing references stay valid.
		if target.Wallet() == "" && placeholder.WalletAddress != nil {
			adopted := *placeholder.WalletAddress
			if err := tx.Model(&domain.Persona{}).
				Where("persona_id = ?", placeholder.PersonaID).
				UpdateColumn("wallet_address", nil).Error; err != nil {
				return err
			}
			if err := tx.Model(&domain.Persona{}).
				Where("persona_id = ?", target.PersonaID).
				UpdateColumn("wallet_address", adopted).Error; err != nil {
				return err
			}
			target.WalletAddress = &adopted
		}

		moved, err := s.transitionFunds(tx, placeholder.PersonaID, target)
		if err != nil {
			return err
		}
		if err := retargetAliases(tx, placeholder, target.PersonaID); err != nil {
			return err
		}
		if placeholder.Wallet() != "" && placeholder.Wallet() != target.Wallet() {
			if _, err := s.Catalog.RewriteSplitBeneficiary(ctx, placeholder.Wallet(), target.Wallet()); err != nil {
				return err
			}
		}
		s.publish(ctx, MethodMerge, placeholder.PersonaID, target.PersonaID, moved)
		return nil
	})
}

// transitionFunds deactivates the placeholder and moves its held balance to
// the target, all-or-nothing. The conditional deactivation serializes
// concurrent resolutions and in-flight postings: whichever commits first
// wins, the loser sees zero rows and aborts with no ledger effect.
func (s *Service) transitionFunds(tx *gorm.DB, placeholderID uuid.UUID, target *domain.Persona) (float64, error) {
	if target.PersonaID == placeholderID {
		return 0, apperr.Validation("Cannot resolve a placeholder into itself")
	}
	res := tx.Model(&domain.Persona{}).
		Where("persona_id = ? AND is_active = ? AND is_placeholder = ?", placeholderID, true, true).
		UpdateColumns(map[string]interface{}{"is_active": false, "is_default": false})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperr.Conflict("Placeholder has already been resolved")
	}

	var held float64
	if err := tx.Model(&domain.Earning{}).
		Where("persona_id = ? AND status = ?", placeholderID, domain.EarningStatusHeld).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&held).Error; err != nil {
		return 0, err
	}
	held = math.Round(held*100) / 100
	if held < 0 {
		return 0, apperr.Invariant("Held balance is negative")
	}

	if err := tx.Model(&domain.Earning{}).
		Where("persona_id = ? AND status = ?", placeholderID, domain.EarningStatusHeld).
		UpdateColumn("status", domain.EarningStatusClaimed).Error; err != nil {
		return 0, err
	}

	if held > 0 {
		res := tx.Model(&domain.Persona{}).
			Where("persona_id = ? AND is_active = ?", target.PersonaID, true).
			UpdateColumn("balance", gorm.Expr("balance + ?", held))
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, apperr.Invariant("Resolution target is no longer active")
		}
	}
	return held, nil
}

// retargetAliases points the placeholder's wallet and any markers already
// aliased to it at the target persona.
func retargetAliases(tx *gorm.DB, placeholder *domain.Persona, targetID uuid.UUID) error {
	if err := tx.Model(&domain.WalletAlias{}).
		Where("resolved_persona_id = ?", placeholder.PersonaID).
		UpdateColumn("resolved_persona_id", targetID).Error; err != nil {
		return err
	}
	if placeholder.Wallet() == "" {
		return nil
	}
	return tx.Create(&domain.WalletAlias{
		AliasWallet:       placeholder.Wallet(),
		ResolvedPersonaID: targetID,
	}).Error
}

func loadPlaceholder(tx *gorm.DB, placeholderID, actorAccountID uuid.UUID) (*domain.Persona, error) {
	var p domain.Persona
	if err := tx.Where("persona_id = ?", placeholderID).First(&p).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("Placeholder persona not found")
		}
		return nil, err
	}
	if !p.IsPlaceholder {
		return nil, apperr.Validation("Persona is not a placeholder")
	}
	if p.AccountID != actorAccountID {
		return nil, apperr.Validation("Placeholder belongs to a different account")
	}
	if !p.IsActive {
		return nil, apperr.Conflict("Placeholder has already been resolved")
	}
	return &p, nil
}

func loadTarget(tx *gorm.DB, targetID uuid.UUID) (*domain.Persona, error) {
	var p domain.Persona
	if err := tx.Where("persona_id = ?", targetID).First(&p).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("Target persona not found")
		}
		return nil, err
	}
	if p.IsPlaceholder {
		return nil, apperr.Validation("Target cannot be a placeholder persona")
	}
	if !p.IsActive {
		return nil, apperr.Validation("Target persona is inactive")
	}
	return &p, nil
}

func (s *Service) publish(ctx context.Context, method string, placeholderID, targetID uuid.UUID, amount float64) {
	log.Info().
		Str("method", method).
		Str("placeholder_persona_id", placeholderID.String()).
		Str("target_persona_id", targetID.String()).
		Float64("amount", amount).
		Msg("placeholder resolved")
	s.Events.Publish(ctx, events.TypeResolutionCompleted, map[string]interface{}{
		"method":                 method,
		"placeholder_persona_id": placeholderID,
		"target_persona_id":      targetID,
		"amount":                 amount,
	})
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
