package catalog

import (
	"context"
	"strings"

	"tunesplit-backend/internal/domain"
	"tunesplit-backend/internal/pkg/apperr"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Catalog is the content-catalog collaborator surface the ledger core
// consumes. The GORM Service below is the in-platform implementation; tests
// and other deployments may substitute their own.
type Catalog interface {
	GetContent(ctx context.Context, contentID string) (*domain.Content, error)
	SaveSplits(ctx context.Context, contentID, splitType string, entries []domain.SplitEntry) error
	RewriteSplitBeneficiary(ctx context.Context, oldWallet, newWallet string) (int, error)
}

type Service struct {
	DB *gorm.DB
}

func (s *Service) GetContent(ctx context.Context, contentID string) (*domain.Content, error) {
	var content domain.Content
	if err := s.DB.WithContext(ctx).Where("content_id = ?", contentID).First(&content).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("Content not found")
		}
		return nil, err
	}
	return &content, nil
}

// SaveSplits persists a normalized split group onto a content record.
func (s *Service) SaveSplits(ctx context.Context, contentID, splitType string, entries []domain.SplitEntry) error {
	col, err := splitColumn(splitType)
	if err != nil {
		return err
	}
	encoded, err := domain.EncodeSplits(entries)
	if err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Model(&domain.Content{}).
		Where("content_id = ?", contentID).
		UpdateColumn(col, encoded)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Content not found")
	}
	return nil
}

// RewriteSplitBeneficiary rewrites every split entry referencing oldWallet to
// newWallet across the catalog, returning the number of contents touched.
// Used only by the merge resolution.
func (s *Service) RewriteSplitBeneficiary(ctx context.Context, oldWallet, newWallet string) (int, error) {
	rewritten := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch []domain.Content
		return tx.FindInBatches(&batch, 100, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				changed, err := rewriteContent(tx, &batch[i], oldWallet, newWallet)
				if err != nil {
					return err
				}
				if changed {
					rewritten++
				}
			}
			return nil
		}).Error
	})
	return rewritten, err
}

func rewriteContent(tx *gorm.DB, content *domain.Content, oldWallet, newWallet string) (bool, error) {
	updates := map[string]interface{}{}
	for col, raw := range map[string]datatypes.JSON{
		"composition_splits": content.CompositionSplits,
		"production_splits":  content.ProductionSplits,
	} {
		entries, err := domain.DecodeSplits(raw)
		if err != nil {
			return false, err
		}
		changed := false
		for i := range entries {
			if entries[i].Wallet == oldWallet {
				entries[i].Wallet = newWallet
				changed = true
			}
		}
		if changed {
			encoded, err := domain.EncodeSplits(entries)
			if err != nil {
				return false, err
			}
			updates[col] = encoded
		}
	}
	if len(updates) == 0 {
		return false, nil
	}
	err := tx.Model(&domain.Content{}).
		Where("content_id = ?", content.ContentID).
		UpdateColumns(updates).Error
	return err == nil, err
}

func splitColumn(splitType string) (string, error) {
	switch strings.ToLower(splitType) {
	case domain.SplitTypeComposition:
		return "composition_splits", nil
	case domain.SplitTypeProduction:
		return "production_splits", nil
	default:
		return "", apperr.Validation("Invalid split type")
	}
}
