package health

import (
	"context"

	"tunesplit-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Handlers serves the JSON health endpoint.
type Handlers struct {
	DB  *gorm.DB
	Rdb *redis.Client
}

// JSON GET /health/json — reports connectivity of the store and Redis.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	dbOK := false
	if h.DB != nil {
		if sqlDB, err := h.DB.DB(); err == nil {
			dbOK = sqlDB.Ping() == nil
		}
	}
	redisOK := false
	if h.Rdb != nil {
		redisOK = h.Rdb.Ping(context.Background()).Err() == nil
	}
	return response.Success(c, "Health", fiber.Map{
		"database": dbOK,
		"redis":    redisOK,
	}, nil)
}
