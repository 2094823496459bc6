package splits

import (
	"tunesplit-backend/internal/catalog"
	"tunesplit-backend/internal/domain"
	"tunesplit-backend/internal/middleware"
	"tunesplit-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Resolver *Resolver
	Catalog  catalog.Catalog
}

// Resolve POST /api/v1/splits/resolve — normalize a raw split group at
// upload time and, when a content_id is supplied, persist it on the record.
func (h *Handlers) Resolve(c *fiber.Ctx) error {
	var body struct {
		Entries        []RawEntry `json:"entries"`
		UploaderWallet string     `json:"uploader_wallet"`
		SplitType      string     `json:"split_type"`
		ContentID      string     `json:"content_id"`
		AIMode         string     `json:"ai_mode"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	if body.UploaderWallet == "" || body.SplitType == "" {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	accountID := middleware.ActorAccountID(c)
	if accountID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	entries, err := h.Resolver.ResolveSplits(c.Context(), body.Entries, body.UploaderWallet, ResolveOptions{
		SplitType:         body.SplitType,
		ContentID:         body.ContentID,
		UploaderAccountID: accountID,
		AIMode:            body.AIMode,
	})
	if err != nil {
		return response.ServiceError(c, err)
	}

	if body.ContentID != "" {
		if err := h.Catalog.SaveSplits(c.Context(), body.ContentID, body.SplitType, entries); err != nil {
			return response.ServiceError(c, err)
		}
	}
	if entries == nil {
		entries = []domain.SplitEntry{}
	}
	return response.Success(c, "Splits resolved", entries, nil)
}
