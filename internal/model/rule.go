package model

import (
	"time"
)

// MatchType selects how a Rule pattern is compared with transaction text.
type MatchType string

// Match type constants.
const (
	MatchContains MatchType = "contains"
	MatchRegex    MatchType = "regex"
)

// Valid reports whether m is a known match type.
func (m MatchType) Valid() bool {
	return m == MatchContains || m == MatchRegex
}

// Rule is a standing pattern-to-category policy.
type Rule struct {
	CreatedAt time.Time `json:"created_at"`
	MatchType MatchType `json:"match_type"`
	Pattern   string    `json:"pattern"`
	Category  string    `json:"category"`
	ID        int64     `json:"id"`
}
