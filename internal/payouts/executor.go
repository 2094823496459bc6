package payouts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Executor abstracts the external payment execution service: given a
// destination and amount it performs the on-chain transfer and returns a
// transaction digest.
type Executor interface {
	Execute(ctx context.Context, destination string, amount float64, chain string) (string, error)
}

// ExecError is a definitive rejection from the execution service. Anything
// else (timeout, connection failure, 5xx) is ambiguous: the transfer may
// have gone through, so the caller must not refund.
type ExecError struct {
	Message string
}

func (e *ExecError) Error() string {
	return e.Message
}

// IsDefinitiveFailure reports whether err is a rejection that guarantees no
// transfer happened.
func IsDefinitiveFailure(err error) bool {
	var e *ExecError
	return errors.As(err, &e)
}

// HTTPClient is an Executor backed by the payment service's HTTP API.
type HTTPClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

type executeResponse struct {
	TransactionRef string `json:"transaction_ref"`
	Error          string `json:"error"`
}

func (c *HTTPClient) Execute(ctx context.Context, destination string, amount float64, chain string) (string, error) {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if c.BaseURL == "" {
		return "", &ExecError{Message: "payment service: PAYMENT_API_URL is not set"}
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/v1/transfers"

	bodyBytes, _ := json.Marshal(map[string]interface{}{
		"destination": destination,
		"amount":      amount,
		"chain":       chain,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", &ExecError{Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		// Network failure or timeout: the transfer may still have executed.
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", fmt.Errorf("payment service timed out: %w", err)
		}
		return "", fmt.Errorf("payment service unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("payment service error: status %d body: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 4xx is a definitive rejection; nothing was transferred.
		var data executeResponse
		_ = json.Unmarshal(respBody, &data)
		msg := data.Error
		if msg == "" {
			msg = fmt.Sprintf("payment rejected: status %d", resp.StatusCode)
		}
		return "", &ExecError{Message: msg}
	}

	var data executeResponse
	if err := json.Unmarshal(respBody, &data); err != nil {
		return "", fmt.Errorf("payment service response decode: %w", err)
	}
	if data.TransactionRef == "" {
		return "", fmt.Errorf("payment service returned no transaction ref")
	}
	return data.TransactionRef, nil
}
