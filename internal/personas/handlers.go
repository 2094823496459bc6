package personas

import (
	"tunesplit-backend/internal/middleware"
	"tunesplit-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// CreatePersona POST /api/v1/personas/create-persona
func (h *Handlers) CreatePersona(c *fiber.Ctx) error {
	var body struct {
		Username    string  `json:"username"`
		DisplayName string  `json:"display_name"`
		Wallet      *string `json:"wallet"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	accountID := middleware.ActorAccountID(c)
	if accountID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	persona, err := h.Service.CreatePersona(c.Context(), CreatePersonaInput{
		AccountID:   accountID,
		Username:    body.Username,
		DisplayName: body.DisplayName,
		Wallet:      body.Wallet,
	})
	if err != nil {
		return response.ServiceError(c, err)
	}
	return response.SuccessCreated(c, "Persona created", persona, nil)
}

// ViewPersonas GET /api/v1/personas/view-personas
func (h *Handlers) ViewPersonas(c *fiber.Ctx) error {
	accountID := middleware.ActorAccountID(c)
	if accountID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	out, err := h.Service.ListForAccount(c.Context(), accountID)
	if err != nil {
		return response.ServiceError(c, err)
	}
	return response.Success(c, "Personas retrieved", out, nil)
}

// SetDefault PATCH /api/v1/personas/set-default
func (h *Handlers) SetDefault(c *fiber.Ctx) error {
	var body struct {
		PersonaID string `json:"persona_id"`
	}
	if err := c.BodyParser(&body); err != nil {
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
	if err := h.Service.SetDefault(c.Context(), accountID, personaID); err != nil {
		return response.ServiceError(c, err)
	}
	return response.Success(c, "Default persona updated", fiber.Map{"persona_id": personaID}, nil)
}

// AssignWallet POST /api/v1/personas/assign-wallet
func (h *Handlers) AssignWallet(c *fiber.Ctx) error {
	var body struct {
		PersonaID string `json:"persona_id"`
		Wallet    string `json:"wallet"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	if body.Wallet == "" {
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
	persona, err := h.Service.AssignWallet(c.Context(), accountID, personaID, body.Wallet)
	if err != nil {
		return response.ServiceError(c, err)
	}
	return response.Success(c, "Wallet assigned", persona, nil)
}

// RemovePersona DELETE /api/v1/personas/remove-persona/:persona_id
func (h *Handlers) RemovePersona(c *fiber.Ctx) error {
	personaID, err := uuid.Parse(c.Params("persona_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for persona_id", fiber.StatusBadRequest, nil)
	}
	accountID := middleware.ActorAccountID(c)
	if accountID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	if err := h.Service.DeactivatePersona(c.Context(), accountID, personaID); err != nil {
		return response.ServiceError(c, err)
	}
	return response.Success(c, "Persona removed", fiber.Map{"persona_id": personaID}, nil)
}
