package payouts

import (
	"tunesplit-backend/internal/domain"
	"tunesplit-backend/internal/middleware"
	"tunesplit-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// Withdraw POST /api/v1/payouts/withdraw
func (h *Handlers) Withdraw(c *fiber.Ctx) error {
	var body struct {
		PersonaID          string  `json:"persona_id"`
		DestinationAddress string  `json:"destination_address"`
		Amount             float64 `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	if body.DestinationAddress == "" || body.Amount == 0 {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	personaID, err := uuid.Parse(body.PersonaID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for persona_id", fiber.StatusBadRequest, nil)
	}
	accountID := middleware.ActorAccountID(c)
	if accountID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	if !h.ownsPersona(accountID, personaID) {
		return response.Error(c, "Persona belongs to a different account", fiber.StatusForbidden, nil)
	}

	w, err := h.Service.Withdraw(c.Context(), personaID, body.DestinationAddress, body.Amount)
	if err != nil {
		return response.ServiceError(c, err)
	}
	return response.Success(c, "Withdrawal completed", w, nil)
}

// History GET /api/v1/payouts/history?persona_id=...
func (h *Handlers) History(c *fiber.Ctx) error {
	personaID, err := uuid.Parse(c.Query("persona_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for persona_id", fiber.StatusBadRequest, nil)
	}
	accountID := middleware.ActorAccountID(c)
	if accountID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	if !h.ownsPersona(accountID, personaID) {
		return response.Error(c, "Persona belongs to a different account", fiber.StatusForbidden, nil)
	}
	out, err := h.Service.ListWithdrawals(c.Context(), personaID)
	if err != nil {
		return response.ServiceError(c, err)
	}
	return response.Success(c, "Withdrawals retrieved", out, nil)
}

// Reconcile POST /api/v1/payouts/reconcile — operator endpoint for
// withdrawals stuck in reconcile_pending.
func (h *Handlers) Reconcile(c *fiber.Ctx) error {
	var body struct {
		WithdrawalID string  `json:"withdrawal_id"`
		TxRef        *string `json:"tx_ref"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	withdrawalID, err := uuid.Parse(body.WithdrawalID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for withdrawal_id", fiber.StatusBadRequest, nil)
	}
	w, err := h.Service.Reconcile(c.Context(), withdrawalID, body.TxRef)
	if err != nil {
		return response.ServiceError(c, err)
	}
	return response.Success(c, "Withdrawal reconciled", w, nil)
}

func (h *Handlers) ownsPersona(accountID, personaID uuid.UUID) bool {
	var p domain.Persona
	err := h.Service.DB.Where("persona_id = ? AND account_id = ?", personaID, accountID).First(&p).Error
	return err == nil
}
