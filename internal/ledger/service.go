package ledger

import (
	"context"
	"math"
	"time"

	"tunesplit-backend/internal/catalog"
	"tunesplit-backend/internal/domain"
	"tunesplit-backend/internal/events"
	"tunesplit-backend/internal/personas"
	"tunesplit-backend/internal/pkg/apperr"
	"tunesplit-backend/internal/pkg/wallets"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	DB       *gorm.DB
	Personas *personas.Service
	Catalog  catalog.Catalog
	Events   *events.Publisher
}

type PostEarningInput struct {
	Wallet     string
	Amount     float64
	SourceType string
	SourceID   string
	ContentID  string // originating content, used to materialize pending beneficiaries
	TxRef      *string
}

// PostEarning records one beneficiary's share of one revenue event.
// Routing: a concrete wallet matching an alias or an active persona is paid
// directly; a placeholder accrues held_in_treasury; an unmaterialized pending
// marker is materialized first; anything else parks against the sentinel so
// the amount is never dropped. Idempotent over (source_id, source_type,
// persona_id): a duplicate returns the original earning untouched.
func (s *Service) PostEarning(ctx context.Context, in PostEarningInput) (*domain.Earning, error) {
	if in.Amount <= 0 {
		return nil, apperr.Validation("Amount must be a positive number")
	}
	if in.Wallet == "" || in.SourceType == "" || in.SourceID == "" {
		return nil, apperr.Validation("Missing required fields")
	}

	var earning *domain.Earning
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		persona, status, err := s.route(tx, in)
		if err != nil {
			return err
		}

		// Idempotency: the natural key is enforced by a unique index; the
		// pre-check gives the friendly duplicate/conflict answer, the index
		// catches concurrent duplicate deliveries.
		var existing domain.Earning
		err = tx.Where("source_id = ? AND source_type = ? AND persona_id = ?",
			in.SourceID, in.SourceType, persona.PersonaID).First(&existing).Error
		if err == nil {
			if round2(existing.Amount) != round2(in.Amount) {
				return apperr.Conflict("Earning already posted with a different amount")
			}
			earning = &existing
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		e := &domain.Earning{
			PersonaID:  persona.PersonaID,
			Amount:     round2(in.Amount),
			SourceType: in.SourceType,
			SourceID:   in.SourceID,
			Status:     status,
			TxHash:     in.TxRef,
		}
		if err := tx.Create(e).Error; err != nil {
			// Concurrent duplicate delivery lost the insert race; surface
			// the winner's row.
			var winner domain.Earning
			if ferr := tx.Where("source_id = ? AND source_type = ? AND persona_id = ?",
				in.SourceID, in.SourceType, persona.PersonaID).First(&winner).Error; ferr == nil {
				earning = &winner
				return nil
			}
			return err
		}

		if status == domain.EarningStatusPaid {
			if err := tx.Model(&domain.Persona{}).
				Where("persona_id = ?", persona.PersonaID).
				UpdateColumn("balance", gorm.Expr("balance + ?", e.Amount)).Error; err != nil {
				return err
			}
		}

		log.Info().
			Str("earning_id", e.EarningID.String()).
			Str("persona_id", persona.PersonaID.String()).
			Str("status", status).
			Float64("amount", e.Amount).
			Msg("earning posted")
		s.Events.Publish(ctx, events.TypeEarningPosted, map[string]interface{}{
			"earning_id": e.EarningID,
			"persona_id": persona.PersonaID,
			"status":     status,
			"amount":     e.Amount,
		})
		earning = e
		return nil
	})
	return earning, err
}

// route resolves a beneficiary wallet to a persona and an earning status,
// inside the posting transaction.
func (s *Service) route(tx *gorm.DB, in PostEarningInput) (*domain.Persona, string, error) {
	// Aliases win over persona wallet columns: a resolved placeholder's
	// wallet must route to its linked persona, not the inactive placeholder.
	for attempt := 0; attempt < 2; attempt++ {
		var alias domain.WalletAlias
		err := tx.Where("alias_wallet = ?", in.Wallet).First(&alias).Error
		if err == nil {
			var p domain.Persona
			if err := tx.Where("persona_id = ? AND is_active = ?", alias.ResolvedPersonaID, true).First(&p).Error; err == nil {
				if !p.IsPlaceholder {
					return &p, domain.EarningStatusPaid, nil
				}
				// An alias to a still-unresolved placeholder (a pending marker
				// materialized on an earlier earning) accrues in treasury like
				// any other placeholder posting.
				locked, lerr := touchActive(tx, p.PersonaID)
				if lerr != nil {
					return nil, "", lerr
				}
				if !locked {
					continue // resolved while we looked; the alias now points elsewhere
				}
				return &p, domain.EarningStatusHeld, nil
			}
			break
		}
		if err != gorm.ErrRecordNotFound {
			return nil, "", err
		}

		var p domain.Persona
		err = tx.Where("wallet_address = ? OR stacks_address = ?", in.Wallet, in.Wallet).First(&p).Error
		if err == nil {
			if !p.IsActive {
				break
			}
			if !p.IsPlaceholder {
				return &p, domain.EarningStatusPaid, nil
			}
			// Touch the placeholder row conditionally. In Postgres this takes
			// its row lock for the rest of the transaction, so an in-flight
			// resolution either finishes first (and we re-evaluate) or waits
			// for this posting to commit before reading held earnings.
			locked, lerr := touchActive(tx, p.PersonaID)
			if lerr != nil {
				return nil, "", lerr
			}
			if !locked {
				continue // resolved while we looked; re-run alias resolution
			}
			return &p, domain.EarningStatusHeld, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, "", err
		}

		if wallets.IsPendingMarker(in.Wallet) {
			placeholder, status, merr := s.materializePending(tx, in)
			if merr != nil {
				return nil, "", merr
			}
			if placeholder != nil {
				return placeholder, status, nil
			}
		}
		break
	}

	// Unroutable: park durably against the sentinel persona.
	sentinel, err := s.Personas.EnsureSentinel(tx)
	if err != nil {
		return nil, "", err
	}
	log.Warn().Str("wallet", in.Wallet).Str("source_id", in.SourceID).Msg("earning beneficiary unresolved, holding against sentinel")
	return sentinel, domain.EarningStatusUnresolved, nil
}

// materializePending creates a placeholder persona for a pending:<name>
// marker at first earning, owned by the account that uploaded the content.
func (s *Service) materializePending(tx *gorm.DB, in PostEarningInput) (*domain.Persona, string, error) {
	name := wallets.Decode(in.Wallet).Name
	if in.ContentID == "" {
		return nil, "", nil // caller falls through to the sentinel
	}
	var content domain.Content
	if err := tx.Where("content_id = ?", in.ContentID).First(&content).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", nil
		}
		return nil, "", err
	}
	var uploader domain.Persona
	if err := tx.Where("persona_id = ?", content.UploaderPersonaID).First(&uploader).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", nil
		}
		return nil, "", err
	}

	placeholder, err := s.Personas.MaterializePlaceholder(tx, uploader.AccountID, name)
	if err != nil {
		return nil, "", err
	}
	// Future postings against the same marker route straight to this persona.
	if err := tx.Create(&domain.WalletAlias{
		AliasWallet:       in.Wallet,
		ResolvedPersonaID: placeholder.PersonaID,
	}).Error; err != nil {
		return nil, "", err
	}
	if err := tx.Model(&domain.PendingCollaborator{}).
		Where("content_id = ? AND name = ? AND status = ?", in.ContentID, name, domain.CollaboratorStatusPending).
		UpdateColumn("status", domain.CollaboratorStatusResolved).Error; err != nil {
		return nil, "", err
	}
	return placeholder, domain.EarningStatusHeld, nil
}

type PostSaleInput struct {
	ContentID  string
	SaleRef    string // identifies the revenue event; part of the idempotency key
	Amount     float64
	SourceType string
	TxRef      *string
}

// PostSale fans one revenue event out over a content record's split groups.
// Composition and production are independent 100% allocations; a beneficiary
// appearing in both collapses to a single earning, since the idempotency key
// is per revenue event and beneficiary. AI entries are platform-retained and
// post no earning.
func (s *Service) PostSale(ctx context.Context, in PostSaleInput) ([]domain.Earning, error) {
	if in.Amount <= 0 {
		return nil, apperr.Validation("Amount must be a positive number")
	}
	content, err := s.Catalog.GetContent(ctx, in.ContentID)
	if err != nil {
		return nil, err
	}

	shares := map[string]float64{}
	var order []string
	for _, group := range []datatypes.JSON{content.CompositionSplits, content.ProductionSplits} {
		entries, err := domain.DecodeSplits(group)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Wallet == wallets.AIBeneficiary {
				continue
			}
			if _, seen := shares[entry.Wallet]; !seen {
				order = append(order, entry.Wallet)
			}
			shares[entry.Wallet] += round2(in.Amount * float64(entry.Percentage) / 100)
		}
	}

	var out []domain.Earning
	for _, wallet := range order {
		share := round2(shares[wallet])
		if share == 0 {
			continue
		}
		e, err := s.PostEarning(ctx, PostEarningInput{
			Wallet:     wallet,
			Amount:     share,
			SourceType: in.SourceType,
			SourceID:   in.SaleRef,
			ContentID:  in.ContentID,
			TxRef:      in.TxRef,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

// Balance is the two-part view of a persona's funds.
type Balance struct {
	Spendable float64 `json:"spendable"`
	Held      float64 `json:"held"`
}

// GetBalance returns spendable (cached persona balance) and held (sum of
// unclaimed treasury earnings) amounts.
func (s *Service) GetBalance(ctx context.Context, personaID uuid.UUID) (*Balance, error) {
	var p domain.Persona
	if err := s.DB.WithContext(ctx).Where("persona_id = ?", personaID).First(&p).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("Persona not found")
		}
		return nil, err
	}
	held, err := heldBalance(s.DB.WithContext(ctx), personaID)
	if err != nil {
		return nil, err
	}
	return &Balance{Spendable: round2(p.Balance), Held: held}, nil
}

// TreasuryHolding is the owner-visible aggregate over one placeholder's
// earnings. Derived; the authoritative balance is the earnings sum.
type TreasuryHolding struct {
	PersonaID  uuid.UUID  `json:"persona_id"`
	Label      string     `json:"label"`
	Balance    float64    `json:"balance"`
	SourceIDs  []string   `json:"source_ids"`
	ClaimedAt  *time.Time `json:"claimed_at"`
	IsResolved bool       `json:"is_resolved"`
}

// TreasuryHoldings lists every placeholder the account owns with its held
// balance and originating revenue events.
func (s *Service) TreasuryHoldings(ctx context.Context, accountID uuid.UUID) ([]TreasuryHolding, error) {
	var placeholders []domain.Persona
	if err := s.DB.WithContext(ctx).
		Where("account_id = ? AND is_placeholder = ?", accountID, true).
		Order("created_at ASC").
		Find(&placeholders).Error; err != nil {
		return nil, err
	}

	out := make([]TreasuryHolding, 0, len(placeholders))
	for _, p := range placeholders {
		held, err := heldBalance(s.DB.WithContext(ctx), p.PersonaID)
		if err != nil {
			return nil, err
		}
		var sources []string
		if err := s.DB.WithContext(ctx).Model(&domain.Earning{}).
			Where("persona_id = ?", p.PersonaID).
			Distinct("source_id").
			Pluck("source_id", &sources).Error; err != nil {
			return nil, err
		}
		h := TreasuryHolding{
			PersonaID:  p.PersonaID,
			Label:      p.DisplayName,
			Balance:    held,
			SourceIDs:  sources,
			IsResolved: !p.IsActive,
		}
		if !p.IsActive {
			t := p.UpdatedAt
			h.ClaimedAt = &t
		}
		out = append(out, h)
	}
	return out, nil
}

// heldBalance sums a persona's unclaimed treasury earnings.
func heldBalance(db *gorm.DB, personaID uuid.UUID) (float64, error) {
	var held float64
	err := db.Model(&domain.Earning{}).
		Where("persona_id = ? AND status = ?", personaID, domain.EarningStatusHeld).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&held).Error
	return round2(held), err
}

// touchActive conditionally updates the persona row while it is still
// active, returning false when a resolution already deactivated it.
func touchActive(tx *gorm.DB, personaID uuid.UUID) (bool, error) {
	res := tx.Model(&domain.Persona{}).
		Where("persona_id = ? AND is_active = ?", personaID, true).
		UpdateColumn("updated_at", time.Now())
	return res.RowsAffected > 0, res.Error
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
