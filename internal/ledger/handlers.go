package ledger

import (
	"tunesplit-backend/internal/middleware"
	"tunesplit-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// RecordEarning POST /api/v1/earnings/record — post a single pre-computed
// beneficiary share (used by the royalty pipeline).
func (h *Handlers) RecordEarning(c *fiber.Ctx) error {
	var body struct {
		Wallet     string  `json:"wallet"`
		Amount     float64 `json:"amount"`
		SourceType string  `json:"source_type"`
		SourceID   string  `json:"source_id"`
		ContentID  string  `json:"content_id"`
		TxRef      *string `json:"tx_ref"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	if body.Wallet == "" || body.SourceType == "" || body.SourceID == "" {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}

	earning, err := h.Service.PostEarning(c.Context(), PostEarningInput{
		Wallet:     body.Wallet,
		Amount:     body.Amount,
		SourceType: body.SourceType,
		SourceID:   body.SourceID,
		ContentID:  body.ContentID,
		TxRef:      body.TxRef,
	})
	if err != nil {
		return response.ServiceError(c, err)
	}
	return response.SuccessCreated(c, "Earning recorded", earning, nil)
}

// RecordSale POST /api/v1/earnings/record-sale — fan a sale out over a
// content record's split groups.
func (h *Handlers) RecordSale(c *fiber.Ctx) error {
	var body struct {
		ContentID  string  `json:"content_id"`
		SaleRef    string  `json:"sale_ref"`
		Amount     float64 `json:"amount"`
		SourceType string  `json:"source_type"`
		TxRef      *string `json:"tx_ref"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	if body.ContentID == "" || body.SaleRef == "" || body.SourceType == "" {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}

	earnings, err := h.Service.PostSale(c.Context(), PostSaleInput{
		ContentID:  body.ContentID,
		SaleRef:    body.SaleRef,
		Amount:     body.Amount,
		SourceType: body.SourceType,
		TxRef:      body.TxRef,
	})
	if err != nil {
		return response.ServiceError(c, err)
	}
	return response.SuccessCreated(c, "Sale recorded", earnings, nil)
}

// GetBalance GET /api/v1/personas/:persona_id/balance
func (h *Handlers) GetBalance(c *fiber.Ctx) error {
	personaID, err := uuid.Parse(c.Params("persona_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for persona_id", fiber.StatusBadRequest, nil)
	}
	balance, err := h.Service.GetBalance(c.Context(), personaID)
	if err != nil {
		return response.ServiceError(c, err)
	}
	return response.Success(c, "Balance retrieved", balance, nil)
}

// TreasuryHoldings GET /api/v1/treasury/holdings — the owner's view over
// funds held for their unresolved collaborators.
func (h *Handlers) TreasuryHoldings(c *fiber.Ctx) error {
	accountID := middleware.ActorAccountID(c)
	if accountID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	holdings, err := h.Service.TreasuryHoldings(c.Context(), accountID)
	if err != nil {
		return response.ServiceError(c, err)
	}
	return response.Success(c, "Treasury holdings retrieved", holdings, nil)
}
