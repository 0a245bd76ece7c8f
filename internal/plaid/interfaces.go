package plaid

import "github.com/Veraticus/spiceflow/internal/service"

// Interfaces satisfied by both the real client and MockClient.
var (
	_ service.TransactionSyncer = (*Client)(nil)
	_ service.Provider          = (*MockClient)(nil)
)
