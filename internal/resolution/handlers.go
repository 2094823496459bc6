package resolution

import (
	"tunesplit-backend/internal/middleware"
	"tunesplit-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// GenerateClaimLink POST /api/v1/resolution/claim-link
func (h *Handlers) GenerateClaimLink(c *fiber.Ctx) error {
	var body struct {
		PlaceholderPersonaID string `json:"placeholder_persona_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	placeholderID, err := uuid.Parse(body.PlaceholderPersonaID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for placeholder_persona_id", fiber.StatusBadRequest, nil)
	}
	accountID := middleware.ActorAccountID(c)
	if accountID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	url, err := h.Service.GenerateClaimLink(c.Context(), placeholderID, accountID)
	if err != nil {
		return response.ServiceError(c, err)
	}
	return response.SuccessCreated(c, "Claim link generated", fiber.Map{"claim_url": url}, nil)
}

// RedeemClaim POST /api/v1/resolution/redeem — called by the onboarding flow
// once the invited collaborator has a real persona.
func (h *Handlers) RedeemClaim(c *fiber.Ctx) error {
	var body struct {
		Token           string `json:"token"`
		TargetPersonaID string `json:"target_persona_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	if body.Token == "" {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	targetID, err := uuid.Parse(body.TargetPersonaID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for target_persona_id", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.RedeemClaim(c.Context(), body.Token, targetID); err != nil {
		return response.ServiceError(c, err)
	}
	return response.Success(c, "Claim redeemed", fiber.Map{"target_persona_id": targetID}, nil)
}

// Link POST /api/v1/resolution/link
func (h *Handlers) Link(c *fiber.Ctx) error {
	var body struct {
		PlaceholderPersonaID string `json:"placeholder_persona_id"`
		TargetPersonaID      string `json:"target_persona_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	placeholderID, err := uuid.Parse(body.PlaceholderPersonaID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for placeholder_persona_id", fiber.StatusBadRequest, nil)
	}
	targetID, err := uuid.Parse(body.TargetPersonaID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for target_persona_id", fiber.StatusBadRequest, nil)
	}
	accountID := middleware.ActorAccountID(c)
	if accountID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	if err := h.Service.LinkPlaceholder(c.Context(), placeholderID, targetID, accountID); err != nil {
		return response.ServiceError(c, err)
	}
	return response.Success(c, "Placeholder linked", fiber.Map{
		"placeholder_persona_id": placeholderID,
		"target_persona_id":      targetID,
	}, nil)
}

// Merge POST /api/v1/resolution/merge
func (h *Handlers) Merge(c *fiber.Ctx) error {
	var body struct {
		PlaceholderPersonaID string `json:"placeholder_persona_id"`
		OwnerPersonaID       string `json:"owner_persona_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	placeholderID, err := uuid.Parse(body.PlaceholderPersonaID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for placeholder_persona_id", fiber.StatusBadRequest, nil)
	}
	ownerPersonaID, err := uuid.Parse(body.OwnerPersonaID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for owner_persona_id", fiber.StatusBadRequest, nil)
	}
	accountID := middleware.ActorAccountID(c)
	if accountID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	if err := h.Service.MergePlaceholder(c.Context(), placeholderID, ownerPersonaID, accountID); err != nil {
		return response.ServiceError(c, err)
	}
	return response.Success(c, "Placeholder merged", fiber.Map{
		"placeholder_persona_id": placeholderID,
		"owner_persona_id":       ownerPersonaID,
	}, nil)
}
