package auth

import (
	"context"

	"tunesplit-backend/internal/middleware"
	"tunesplit-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const accountSessionsPrefix = "account_sessions:"

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	AccountFinder AccountFinder
	Rdb           *redis.Client
	Config        middleware.SessionConfig
}

// Login POST /api/v1/auth/login — authenticate, create session, set cookie.
func (h *Handlers) Login(c *fiber.Ctx) error {
	if h.AccountFinder == nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	var req LoginInput
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, ErrEmailPasswordRequired.Error(), fiber.StatusBadRequest, nil)
	}
	if req.Email == "" || req.Password == "" {
		return response.Error(c, ErrEmailPasswordRequired.Error(), fiber.StatusBadRequest, nil)
	}

	account, err := h.AccountFinder.FindByEmailAndPassword(req.Email, req.Password)
	if err != nil {
		switch err {
		case ErrEmailPasswordRequired:
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case ErrInvalidEmail, ErrIncorrectPassword:
			return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
		default:
			return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
		}
	}

	sessionID := middleware.RegenerateSessionID(c)
	sessionUser := middleware.SessionUser{
		AccountID: account.AccountID.String(),
		Fullname:  account.Fullname,
		Email:     account.Email,
	}
	if finder, ok := h.AccountFinder.(*GormAccountFinder); ok {
		sessionUser.DefaultPersonaID = DefaultPersonaID(finder.DB, account)
	}
	middleware.SetSessionUser(c, sessionUser)

	if h.Rdb != nil {
		if err := h.Rdb.SAdd(context.Background(), accountSessionsPrefix+account.AccountID.String(), sessionID).Err(); err != nil {
			return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
		}
	}

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = "s:" + sessionID
	c.Cookie(&cookie)

	return response.Success(c, "Login successful", fiber.Map{
		"account_id":         sessionUser.AccountID,
		"fullname":           sessionUser.Fullname,
		"email":              sessionUser.Email,
		"default_persona_id": sessionUser.DefaultPersonaID,
	}, nil)
}

// Me GET /api/v1/auth/me — return the session account.
func (h *Handlers) Me(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return response.Unauthorized(c, ErrNotAuthenticated.Error())
	}
	return response.Success(c, "Authenticated", user, nil)
}

// Logout DELETE /api/v1/auth/logout — destroy session and clear cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	if sessionID != "" && h.Rdb != nil {
		_ = h.Rdb.Del(context.Background(), middleware.SessionRedisPrefix+sessionID).Err()
	}
	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = ""
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	return response.Success(c, "Logged out", fiber.Map{}, nil)
}
