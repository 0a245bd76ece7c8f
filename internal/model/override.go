package model

import "time"

// CategoryOverride pins a transaction to a category. At most one exists
// per transaction.
type CategoryOverride struct {
	UpdatedAt     time.Time
	Category      string
	TransactionID int64
}
