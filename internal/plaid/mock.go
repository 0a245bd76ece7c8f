package plaid

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/spiceflow/internal/model"
)

// MockClient is a mock implementation of service.Provider for testing.
type MockClient struct {
	// Functions that can be set by tests to control behavior
	TransactionsSyncFn          func(ctx context.Context, accessToken, cursor string) (*model.SyncPage, error)
	CreateLinkTokenFn           func(ctx context.Context, userID string) (string, error)
	ExchangePublicTokenFn       func(ctx context.Context, publicToken string) (*model.LinkedItem, error)
	CreateSandboxTransactionsFn func(ctx context.Context, accessToken string, txns []model.SandboxTransaction) error

	// PagesByCursor serves TransactionsSync when TransactionsSyncFn is nil.
	// Keys are "<accessToken>|<cursor>".
	PagesByCursor map[string]*model.SyncPage

	// Call tracking
	TransactionsSyncCalls    []TransactionsSyncCall
	CreateLinkTokenCalls     []string
	ExchangePublicTokenCalls []string
	SandboxCalls             []SandboxCall

	mu sync.Mutex
}

// TransactionsSyncCall records the parameters of a TransactionsSync call.
type TransactionsSyncCall struct {
	AccessToken string
	Cursor      string
}

// SandboxCall records the parameters of a CreateSandboxTransactions call.
type SandboxCall struct {
	AccessToken  string
	Transactions []model.SandboxTransaction
}

// NewMockClient creates a new mock Plaid client.
func NewMockClient() *MockClient {
	return &MockClient{
		PagesByCursor: make(map[string]*model.SyncPage),
	}
}

// AddPage registers the page returned for accessToken at cursor.
func (m *MockClient) AddPage(accessToken, cursor string, page *model.SyncPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PagesByCursor[accessToken+"|"+cursor] = page
}

// TransactionsSync implements service.TransactionSyncer.
func (m *MockClient) TransactionsSync(ctx context.Context, accessToken, cursor string) (*model.SyncPage, error) {
	m.mu.Lock()
	m.TransactionsSyncCalls = append(m.TransactionsSyncCalls, TransactionsSyncCall{
		AccessToken: accessToken,
		Cursor:      cursor,
	})
	fn := m.TransactionsSyncFn
	page, ok := m.PagesByCursor[accessToken+"|"+cursor]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, accessToken, cursor)
	}
	if !ok {
		// Default behavior: nothing new, cursor unchanged
		return &model.SyncPage{NextCursor: cursor}, nil
	}
	return page, nil
}

// CreateLinkToken implements service.Provider.
func (m *MockClient) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	m.CreateLinkTokenCalls = append(m.CreateLinkTokenCalls, userID)
	m.mu.Unlock()

	if m.CreateLinkTokenFn != nil {
		return m.CreateLinkTokenFn(ctx, userID)
	}
	return "link-sandbox-" + userID, nil
}

// ExchangePublicToken implements service.Provider.
func (m *MockClient) ExchangePublicToken(ctx context.Context, publicToken string) (*model.LinkedItem, error) {
	m.mu.Lock()
	m.ExchangePublicTokenCalls = append(m.ExchangePublicTokenCalls, publicToken)
	m.mu.Unlock()

	if m.ExchangePublicTokenFn != nil {
		return m.ExchangePublicTokenFn(ctx, publicToken)
	}
	return &model.LinkedItem{
		AccessToken: "access-" + publicToken,
		ExternalID:  fmt.Sprintf("item-%s", publicToken),
	}, nil
}

// CreateSandboxTransactions implements service.Provider.
func (m *MockClient) CreateSandboxTransactions(ctx context.Context, accessToken string, txns []model.SandboxTransaction) error {
	m.mu.Lock()
	m.SandboxCalls = append(m.SandboxCalls, SandboxCall{AccessToken: accessToken, Transactions: txns})
	m.mu.Unlock()

	if m.CreateSandboxTransactionsFn != nil {
		return m.CreateSandboxTransactionsFn(ctx, accessToken, txns)
	}
	return nil
}

// SyncCallCount returns the number of TransactionsSync calls so far.
func (m *MockClient) SyncCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.TransactionsSyncCalls)
}

// Reset clears all call tracking.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransactionsSyncCalls = nil
	m.CreateLinkTokenCalls = nil
	m.ExchangePublicTokenCalls = nil
	m.SandboxCalls = nil
}
