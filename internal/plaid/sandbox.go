package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
)

// MaxSandboxTransactions bounds a single seeding request.
const MaxSandboxTransactions = 100

type sandboxTransaction struct {
	DateTransacted  string      `json:"date_transacted"`
	DatePosted      string      `json:"date_posted"`
	Amount          json.Number `json:"amount"`
	Description     string      `json:"description"`
	IsoCurrencyCode string      `json:"iso_currency_code,omitempty"`
}

type sandboxTransactionsRequest struct {
	ClientID     string               `json:"client_id"`
	Secret       string               `json:"secret"`
	AccessToken  string               `json:"access_token"`
	Transactions []sandboxTransaction `json:"transactions"`
}

type plaidErrorBody struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// CreateSandboxTransactions injects custom transactions into a sandbox item
// via /sandbox/transactions/create. The pinned SDK predates that endpoint, so
// the request is made directly against the sandbox host.
func (c *Client) CreateSandboxTransactions(ctx context.Context, accessToken string, txns []model.SandboxTransaction) error {
	if c.environment != EnvSandbox {
		return common.NewValidationError("environment", "sandbox seeding requires the sandbox environment")
	}
	if len(txns) == 0 || len(txns) > MaxSandboxTransactions {
		return common.NewValidationError("count", fmt.Sprintf("must be between 1 and %d", MaxSandboxTransactions))
	}

	body := sandboxTransactionsRequest{
		ClientID:     c.clientID,
		Secret:       c.secret,
		AccessToken:  accessToken,
		Transactions: make([]sandboxTransaction, 0, len(txns)),
	}
	for _, t := range txns {
		body.Transactions = append(body.Transactions, sandboxTransaction{
			DateTransacted:  t.DateTransacted,
			DatePosted:      t.DatePosted,
			Amount:          json.Number(t.Amount.StringFixed(2)),
			Description:     t.Description,
			IsoCurrencyCode: t.CurrencyCode,
		})
	}

	err := common.WithRetry(ctx, func() error {
		return c.postJSON(ctx, "/sandbox/transactions/create", body)
	}, *c.retryOpts)
	if err != nil {
		return providerError("failed to create sandbox transactions", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return common.ProviderError("sandbox request failed", err)
		}
		return &common.RetryableError{Err: common.ProviderError("sandbox request failed", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var perr plaidErrorBody
	if decodeErr := json.NewDecoder(resp.Body).Decode(&perr); decodeErr != nil || perr.ErrorCode == "" {
		err := common.ProviderError("sandbox request failed", fmt.Errorf("unexpected status %d", resp.StatusCode))
		if resp.StatusCode >= http.StatusInternalServerError {
			return &common.RetryableError{Err: err, Retryable: true}
		}
		return err
	}

	err = c.classifyPlaidError("sandbox transactions create", perr.ErrorType, perr.ErrorCode, perr.ErrorMessage, resp.StatusCode)
	if common.IsRetryable(err) {
		return err
	}
	return common.ProviderError("sandbox request failed", err)
}
