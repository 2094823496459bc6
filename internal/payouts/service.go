package payouts

import (
	"context"
	"math"

	"tunesplit-backend/internal/domain"
	"tunesplit-backend/internal/events"
	"tunesplit-backend/internal/pkg/apperr"
	"tunesplit-backend/internal/pkg/wallets"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service struct {
	DB       *gorm.DB
	Executor Executor
	Events   *events.Publisher
}

// Withdraw moves spendable balance off-platform: reserve (debit + persisted
// Withdrawal row in one transaction), execute, confirm. A definitive
// rejection refunds; an ambiguous failure keeps the debit and parks the row
// as reconcile_pending — double-spend is the unacceptable mode, not "stuck
// pending".
func (s *Service) Withdraw(ctx context.Context, personaID uuid.UUID, destination string, amount float64) (*domain.Withdrawal, error) {
	if amount <= 0 {
		return nil, apperr.Validation("Amount must be a positive number")
	}
	amount = round2(amount)
	chain := wallets.ChainOf(destination)
	if chain == "" {
		return nil, apperr.Validation("Invalid destination address")
	}

	var w *domain.Withdrawal
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Persona
		if err := tx.Where("persona_id = ?", personaID).First(&p).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Persona not found")
			}
			return err
		}
		if !p.IsActive || p.IsPlaceholder {
			return apperr.Validation("Persona cannot withdraw")
		}
		if p.Wallet() != "" && wallets.ChainOf(p.Wallet()) != chain && p.StacksAddress == nil {
			return apperr.Validation("Destination address chain does not match persona wallet")
		}

		// Conditional debit: the balance guard and the decrement are one
		// statement, so two racing withdrawals can never both pass.
		res := tx.Model(&domain.Persona{}).
			Where("persona_id = ? AND is_active = ? AND balance >= ?", personaID, true, amount).
			UpdateColumn("balance", gorm.Expr("balance - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Validation("Insufficient balance")
		}

		w = &domain.Withdrawal{
			PersonaID:          personaID,
			Amount:             amount,
			DestinationAddress: destination,
			Chain:              chain,
			Status:             domain.WithdrawalStatusPending,
		}
		return tx.Create(w).Error
	})
	if err != nil {
		return nil, err
	}

	txRef, execErr := s.Executor.Execute(ctx, destination, amount, chain)
	if execErr == nil {
		if err := s.DB.WithContext(ctx).Model(&domain.Withdrawal{}).
			Where("withdrawal_id = ?", w.WithdrawalID).
			UpdateColumns(map[string]interface{}{
				"status":  domain.WithdrawalStatusCompleted,
				"tx_hash": txRef,
			}).Error; err != nil {
			return nil, err
		}
		w.Status = domain.WithdrawalStatusCompleted
		w.TxHash = &txRef
		s.Events.Publish(ctx, events.TypeWithdrawalSettled, map[string]interface{}{
			"withdrawal_id": w.WithdrawalID,
			"persona_id":    personaID,
			"status":        w.Status,
			"tx_ref":        txRef,
		})
		return w, nil
	}

	if IsDefinitiveFailure(execErr) {
		// Nothing was transferred; restore the reserved amount.
		reason := execErr.Error()
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&domain.Withdrawal{}).
				Where("withdrawal_id = ?", w.WithdrawalID).
				UpdateColumns(map[string]interface{}{
					"status":         domain.WithdrawalStatusFailed,
					"failure_reason": reason,
				}).Error; err != nil {
				return err
			}
			return tx.Model(&domain.Persona{}).
				Where("persona_id = ?", personaID).
				UpdateColumn("balance", gorm.Expr("balance + ?", amount)).Error
		})
		if err != nil {
			return nil, err
		}
		return nil, apperr.External(reason)
	}

	// Ambiguous: the transfer may have executed. Keep the debit and flag the
	// row for reconciliation; never refund on a timeout.
	log.Warn().
		Str("withdrawal_id", w.WithdrawalID.String()).
		Err(execErr).
		Msg("withdrawal outcome ambiguous, pending reconciliation")
	if err := s.DB.WithContext(ctx).Model(&domain.Withdrawal{}).
		Where("withdrawal_id = ?", w.WithdrawalID).
		UpdateColumn("status", domain.WithdrawalStatusReconcilePending).Error; err != nil {
		return nil, err
	}
	return nil, apperr.External("Withdrawal pending reconciliation")
}

// ListWithdrawals returns a persona's withdrawals, newest first.
func (s *Service) ListWithdrawals(ctx context.Context, personaID uuid.UUID) ([]domain.Withdrawal, error) {
	var out []domain.Withdrawal
	err := s.DB.WithContext(ctx).
		Where("persona_id = ?", personaID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// Reconcile settles a reconcile_pending withdrawal once the operator has a
// definitive answer: a transaction ref completes it, confirmed failure
// refunds it. Only reconcile_pending rows are eligible.
func (s *Service) Reconcile(ctx context.Context, withdrawalID uuid.UUID, txRef *string) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("withdrawal_id = ?", withdrawalID).First(&w).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Withdrawal not found")
			}
			return err
		}
		if w.Status != domain.WithdrawalStatusReconcilePending {
			return apperr.Conflict("Withdrawal is not pending reconciliation")
		}

		if txRef != nil && *txRef != "" {
			res := tx.Model(&domain.Withdrawal{}).
				Where("withdrawal_id = ? AND status = ?", withdrawalID, domain.WithdrawalStatusReconcilePending).
				UpdateColumns(map[string]interface{}{
					"status":  domain.WithdrawalStatusCompleted,
					"tx_hash": *txRef,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperr.Conflict("Withdrawal is not pending reconciliation")
			}
			w.Status = domain.WithdrawalStatusCompleted
			w.TxHash = txRef
			return nil
		}

		res := tx.Model(&domain.Withdrawal{}).
			Where("withdrawal_id = ? AND status = ?", withdrawalID, domain.WithdrawalStatusReconcilePending).
			UpdateColumns(map[string]interface{}{
				"status":         domain.WithdrawalStatusFailed,
				"failure_reason": "reconciled as failed",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("Withdrawal is not pending reconciliation")
		}
		if err := tx.Model(&domain.Persona{}).
			Where("persona_id = ?", w.PersonaID).
			UpdateColumn("balance", gorm.Expr("balance + ?", w.Amount)).Error; err != nil {
			return err
		}
		w.Status = domain.WithdrawalStatusFailed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Events.Publish(ctx, events.TypeWithdrawalSettled, map[string]interface{}{
		"withdrawal_id": w.WithdrawalID,
		"persona_id":    w.PersonaID,
		"status":        w.Status,
	})
	return &w, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
