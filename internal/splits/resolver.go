package splits

import (
	"context"
	"math"

	"tunesplit-backend/internal/domain"
	"tunesplit-backend/internal/personas"
	"tunesplit-backend/internal/pkg/apperr"
	"tunesplit-backend/internal/pkg/wallets"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxEntries is the per-group entry cap (composition and production each).
const MaxEntries = 3

// AI attribution modes for production splits.
const (
	AIModeNone      = ""
	AIModeAssisted  = "assisted"
	AIModeGenerated = "generated"
)

// RawEntry is one line of an incoming split group as supplied by the upload
// handler: a wallet, a bare name, or (first entry only) neither.
type RawEntry struct {
	Wallet        string  `json:"wallet"`
	Name          string  `json:"name"`
	Percentage    float64 `json:"percentage"`
	CreatePersona bool    `json:"create_persona"`
}

// ResolveOptions carries the context a group is resolved in. ContentID may be
// empty for a dry-run resolution (no pending-collaborator rows recorded).
type ResolveOptions struct {
	SplitType         string
	ContentID         string
	UploaderAccountID uuid.UUID
	AIMode            string
}

type Resolver struct {
	DB       *gorm.DB
	Personas *personas.Service
}

// ResolveSplits normalizes a raw split group against the uploader's wallet:
// every returned entry has a concrete or pending wallet and an integer
// percentage. Entries flagged create_persona are materialized as placeholder
// personas immediately; other named entries stay pending markers and are
// recorded as pending collaborators for later resolution.
func (r *Resolver) ResolveSplits(ctx context.Context, raw []RawEntry, uploaderWallet string, opts ResolveOptions) ([]domain.SplitEntry, error) {
	if !wallets.IsValidAddress(uploaderWallet) {
		return nil, apperr.Validation("Invalid uploader wallet address")
	}
	if opts.SplitType != domain.SplitTypeComposition && opts.SplitType != domain.SplitTypeProduction {
		return nil, apperr.Validation("Invalid split type")
	}
	if len(raw) > MaxEntries {
		return nil, apperr.Validation("A split group may have at most 3 entries")
	}

	// Fully AI-generated production is attributed wholesale to the reserved
	// AI constant, regardless of the supplied entries.
	if opts.AIMode == AIModeGenerated && opts.SplitType == domain.SplitTypeProduction {
		return []domain.SplitEntry{{Wallet: wallets.AIBeneficiary, Percentage: 100}}, nil
	}

	entries, materialize, err := normalize(raw, uploaderWallet)
	if err != nil {
		return nil, err
	}

	if opts.AIMode == AIModeAssisted && opts.SplitType == domain.SplitTypeProduction {
		// Halve every human share and append a 50% AI entry. The total may
		// drift off 100 after rounding; accepted for reproducibility with
		// existing records rather than renormalized.
		for i := range entries {
			entries[i].Percentage = int(math.Round(float64(entries[i].Percentage) / 2))
		}
		entries = append(entries, domain.SplitEntry{Wallet: wallets.AIBeneficiary, Percentage: 50})
	}

	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range entries {
			b := wallets.Decode(entries[i].Wallet)
			if b.Kind != wallets.KindNamed {
				continue
			}
			if materialize[i] {
				p, err := r.Personas.MaterializePlaceholder(tx, opts.UploaderAccountID, b.Name)
				if err != nil {
					return err
				}
				entries[i].Wallet = p.Wallet()
				continue
			}
			if opts.ContentID == "" {
				continue
			}
			pc := &domain.PendingCollaborator{
				ContentID:        opts.ContentID,
				Name:             b.Name,
				Percentage:       entries[i].Percentage,
				SplitType:        opts.SplitType,
				Position:         i,
				Status:           domain.CollaboratorStatusPending,
				CreatorAccountID: opts.UploaderAccountID,
			}
			if err := tx.Create(pc).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// normalize applies the per-entry wallet/name/default rules and drops
// zero-percentage entries. The returned bool slice marks entries to
// materialize immediately (indices track the returned entries).
func normalize(raw []RawEntry, uploaderWallet string) ([]domain.SplitEntry, []bool, error) {
	if len(raw) == 0 {
		return []domain.SplitEntry{{Wallet: uploaderWallet, Percentage: 100}}, []bool{false}, nil
	}

	var entries []domain.SplitEntry
	var materialize []bool
	for i, in := range raw {
		if in.Percentage < 0 {
			return nil, nil, apperr.Validation("Percentage must be non-negative")
		}
		pct := int(math.Round(in.Percentage))

		var wallet, name string
		switch {
		case in.Wallet != "":
			if !wallets.IsValidAddress(in.Wallet) && !wallets.IsPendingMarker(in.Wallet) {
				return nil, nil, apperr.Validation("Invalid wallet address format")
			}
			wallet = in.Wallet
			name = in.Name
		case in.Name != "":
			wallet = wallets.Named(in.Name).Encode()
			name = in.Name
		case i == 0:
			wallet = uploaderWallet
		default:
			return nil, nil, apperr.Validation("Split entry needs a wallet or a name")
		}

		if in.CreatePersona && name == "" {
			return nil, nil, apperr.Validation("create_persona requires a collaborator name")
		}
		if pct == 0 {
			continue
		}
		entries = append(entries, domain.SplitEntry{Wallet: wallet, Percentage: pct, Name: name})
		materialize = append(materialize, in.CreatePersona && wallets.IsPendingMarker(wallet))
	}
	return entries, materialize, nil
}
