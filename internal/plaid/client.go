// Package plaid provides a client for interacting with the Plaid API.
package plaid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/service"
)

// Plaid error codes the client reacts to.
const (
	codeRateLimit          = "RATE_LIMIT_EXCEEDED"
	codeMutationDuringPage = "TRANSACTIONS_SYNC_MUTATION_DURING_PAGINATION"

	errorTypeAPI = "API_ERROR"
)

// transientCodes clear up without any change on our side.
var transientCodes = map[string]bool{
	"INTERNAL_SERVER_ERROR":      true,
	"PLANNED_MAINTENANCE":        true,
	"INSTITUTION_DOWN":           true,
	"INSTITUTION_NOT_RESPONDING": true,
}

// Supported environments.
const (
	EnvSandbox     = "sandbox"
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// LinkDaysRequested is how much history a newly linked item is asked for.
const LinkDaysRequested = 180

var environments = map[string]plaid.Environment{
	EnvSandbox:     plaid.Sandbox,
	EnvDevelopment: plaid.Environment("https://development.plaid.com"),
	EnvProduction:  plaid.Production,
}

// Config holds Plaid API configuration.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox, development, or production
	ClientName  string // shown in the Link widget
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return common.NewValidationError("plaid client ID", "is required")
	}
	if c.Secret == "" {
		return common.NewValidationError("plaid secret", "is required")
	}
	if c.Environment == "" {
		return common.NewValidationError("plaid environment", "is required")
	}
	if _, ok := environments[c.Environment]; !ok {
		return common.NewValidationError("plaid environment", "must be sandbox, development or production")
	}
	return nil
}

// Client implements service.Provider against the Plaid API.
type Client struct {
	client      *plaid.APIClient
	http        *http.Client
	logger      *slog.Logger
	retryOpts   *service.RetryOptions
	baseURL     string
	clientID    string
	secret      string
	clientName  string
	environment string
}

// NewClient creates a new Plaid client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	env := environments[cfg.Environment]

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	configuration.UseEnvironment(env)

	clientName := cfg.ClientName
	if clientName == "" {
		clientName = "Spiceflow"
	}

	return &Client{
		client:      plaid.NewAPIClient(configuration),
		http:        &http.Client{Timeout: 30 * time.Second},
		baseURL:     string(env),
		clientID:    cfg.ClientID,
		secret:      cfg.Secret,
		clientName:  clientName,
		environment: cfg.Environment,
		logger:      slog.Default().With("component", "plaid"),
		retryOpts: &service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// TransactionsSync fetches one page of the item's delta feed after cursor.
// A mutation reported mid-pagination is returned as common.ErrSyncMutated.
func (c *Client) TransactionsSync(ctx context.Context, accessToken, cursor string) (*model.SyncPage, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	var page *model.SyncPage
	retryErr := common.WithRetry(ctx, func() error {
		request := plaid.NewTransactionsSyncRequest(accessToken)
		if cursor != "" {
			request.SetCursor(cursor)
		}
		options := plaid.NewTransactionsSyncRequestOptions()
		options.SetIncludeOriginalDescription(true)
		request.SetOptions(*options)

		resp, httpResp, err := c.client.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
		if err != nil {
			return c.classify("transactions sync", httpResp, err)
		}

		page = mapSyncResponse(resp)
		c.logger.Debug("Fetched sync page",
			"added", len(page.Added),
			"modified", len(page.Modified),
			"removed", len(page.Removed),
			"has_more", page.HasMore)
		return nil
	}, *c.retryOpts)

	if retryErr != nil {
		return nil, providerError("failed to sync transactions", retryErr)
	}
	return page, nil
}

// CreateLinkToken creates a Link token for Plaid Link initialization.
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: userID,
	}

	request := plaid.NewLinkTokenCreateRequest(
		c.clientName,
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		user,
	)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
	request.SetTransactions(plaid.LinkTokenTransactions{
		DaysRequested: plaid.PtrInt32(LinkDaysRequested),
	})

	resp, httpResp, err := c.client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", providerError("failed to create link token", c.classify("link token create", httpResp, err))
	}

	return resp.GetLinkToken(), nil
}

// ExchangePublicToken exchanges a public token from Link for an access token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*model.LinkedItem, error) {
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, httpResp, err := c.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return nil, providerError("failed to exchange public token", c.classify("public token exchange", httpResp, err))
	}

	return &model.LinkedItem{
		AccessToken: resp.GetAccessToken(),
		ExternalID:  resp.GetItemId(),
	}, nil
}

// classify turns a Plaid SDK error into one the retry loop and callers
// understand. Rate limits, Plaid API_ERRORs, 5xx responses and transport
// failures are retryable.
func (c *Client) classify(op string, httpResp *http.Response, err error) error {
	status := 0
	if httpResp != nil {
		status = httpResp.StatusCode
	}

	plaidError := extractPlaidError(err)
	if plaidError == nil {
		if errors.Is(err, context.Canceled) || (status > 0 && status < http.StatusInternalServerError) {
			return fmt.Errorf("%s: %w", op, err)
		}
		c.logger.Warn("Request to Plaid failed, will retry", "operation", op, "status", status, "error", err)
		return &common.RetryableError{Err: fmt.Errorf("%s: %w", op, err), Retryable: true}
	}

	return c.classifyPlaidError(op, string(plaidError.ErrorType), plaidError.ErrorCode, plaidError.ErrorMessage, status)
}

func (c *Client) classifyPlaidError(op, errorType, code, message string, status int) error {
	switch {
	case code == codeRateLimit:
		c.logger.Warn("Rate limit hit, will retry", "operation", op, "error", message)
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: %s", common.ErrPlaidRateLimit, message),
			Retryable: true,
		}
	case code == codeMutationDuringPage:
		return fmt.Errorf("%w: %s", common.ErrSyncMutated, message)
	case isTransient(errorType, code, status):
		c.logger.Warn("Transient Plaid error, will retry", "operation", op, "code", code, "status", status)
		return &common.RetryableError{
			Err:       fmt.Errorf("plaid API error: %s - %s", code, message),
			Retryable: true,
		}
	default:
		return fmt.Errorf("plaid API error: %s - %s", code, message)
	}
}

func isTransient(errorType, code string, status int) bool {
	return errorType == errorTypeAPI || transientCodes[code] || status >= http.StatusInternalServerError
}

// providerError tags err as a provider failure unless it already carries a
// more specific provider sentinel.
func providerError(op string, err error) error {
	if common.KindOf(err) == common.KindProvider {
		return fmt.Errorf("%s: %w", op, err)
	}
	return common.ProviderError(op, err)
}

// extractPlaidError attempts to extract a Plaid error from a generic error.
func extractPlaidError(err error) *plaid.PlaidError {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return nil
	}
	return &plaidErr
}

// Ensure Client implements the provider interface.
var _ service.Provider = (*Client)(nil)
