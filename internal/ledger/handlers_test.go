package ledger

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"tunesplit-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerApp(h *Handlers, accountID uuid.UUID) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{
			"account_id": accountID.String(),
		})
		return c.Next()
	})
	app.Post("/api/v1/earnings/record", h.RecordEarning)
	app.Get("/api/v1/personas/:persona_id/balance", h.GetBalance)
	app.Get("/api/v1/treasury/holdings", h.TreasuryHoldings)
	return app
}

// RecordEarning: missing required fields → 400.
func TestRecordEarning_MissingFields(t *testing.T) {
	svc, _ := setupLedgerTest(t)
	app := newLedgerApp(&Handlers{Service: svc}, uuid.New())

	b, _ := json.Marshal(map[string]interface{}{"amount": 10})
	req := httptest.NewRequest("POST", "/api/v1/earnings/record", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// RecordEarning: happy path → 201 with the earning in data.
func TestRecordEarning_Created(t *testing.T) {
	svc, db := setupLedgerTest(t)
	p := seedPersona(t, db, "a@example.com", "nova", false)
	app := newLedgerApp(&Handlers{Service: svc}, p.AccountID)

	b, _ := json.Marshal(map[string]interface{}{
		"wallet":      p.Wallet(),
		"amount":      12.5,
		"source_type": domain.SourceTypeDownloadSale,
		"source_id":   "sale-1",
	})
	req := httptest.NewRequest("POST", "/api/v1/earnings/record", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Status string  `json:"status"`
			Amount float64 `json:"amount"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, domain.EarningStatusPaid, body.Data.Status)
	assert.Equal(t, 12.5, body.Data.Amount)
}

// RecordEarning: duplicate with a different amount → 409.
func TestRecordEarning_ConflictStatus(t *testing.T) {
	svc, db := setupLedgerTest(t)
	p := seedPersona(t, db, "a@example.com", "nova", false)
	app := newLedgerApp(&Handlers{Service: svc}, p.AccountID)

	post := func(amount float64) int {
		b, _ := json.Marshal(map[string]interface{}{
			"wallet":      p.Wallet(),
			"amount":      amount,
			"source_type": domain.SourceTypeDownloadSale,
			"source_id":   "sale-1",
		})
		req := httptest.NewRequest("POST", "/api/v1/earnings/record", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}
	assert.Equal(t, fiber.StatusCreated, post(10))
	assert.Equal(t, fiber.StatusConflict, post(11))
}

// GetBalance: invalid persona_id → 400, unknown persona → 404.
func TestGetBalanceHandler(t *testing.T) {
	svc, _ := setupLedgerTest(t)
	app := newLedgerApp(&Handlers{Service: svc}, uuid.New())

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/personas/not-a-uuid/balance", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/personas/"+uuid.NewString()+"/balance", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

// TreasuryHoldings: empty account → 200 with empty list.
func TestTreasuryHoldingsHandler_Empty(t *testing.T) {
	svc, _ := setupLedgerTest(t)
	app := newLedgerApp(&Handlers{Service: svc}, uuid.New())

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/treasury/holdings", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Data)
}
