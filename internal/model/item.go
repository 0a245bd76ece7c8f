// Package model defines the core data structures for the spiceflow ledger.
package model

import "time"

// Item is one linked provider credential.
type Item struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Cursor      *string // opaque, replayed verbatim
	ExternalID  string
	AccessToken string
	ID          int64
}

// CursorValue returns the cursor or "" when the item has never synced.
func (i *Item) CursorValue() string {
	if i.Cursor == nil {
		return ""
	}
	return *i.Cursor
}
