package api

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spiceflow/internal/category"
	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/syncer"
)

type overrideRequest struct {
	Category      *string `json:"category"` // null clears the override
	TransactionID string  `json:"transactionId"`
}

func (req *overrideRequest) validate() error {
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	if req.TransactionID == "" {
		return common.NewValidationError("transactionId", "must not be empty")
	}
	if req.Category != nil {
		trimmed := strings.TrimSpace(*req.Category)
		if trimmed == "" {
			return common.NewValidationError("category", "must be a non-empty string or null")
		}
		req.Category = &trimmed
	}
	return nil
}

type ruleRequest struct {
	ApplyNow  *bool  `json:"applyNow"`
	MatchType string `json:"matchType"`
	Pattern   string `json:"pattern"`
	Category  string `json:"category"`
}

// input converts the request, defaulting to a contains rule applied now.
func (req *ruleRequest) input() (category.RuleInput, error) {
	in := category.RuleInput{
		MatchType: model.MatchType(req.MatchType),
		Pattern:   req.Pattern,
		Category:  strings.TrimSpace(req.Category),
		ApplyNow:  true,
	}
	if in.MatchType == "" {
		in.MatchType = model.MatchContains
	}
	if !in.MatchType.Valid() {
		return in, common.NewValidationError("matchType", "must be contains or regex")
	}
	if in.Pattern == "" {
		return in, common.NewValidationError("pattern", "must not be empty")
	}
	if in.Category == "" {
		return in, common.NewValidationError("category", "must not be empty")
	}
	if req.ApplyNow != nil {
		in.ApplyNow = *req.ApplyNow
	}
	return in, nil
}

type syncRequest struct {
	ItemID *int64 `json:"itemId"`
}

func (req *syncRequest) validate() error {
	if req.ItemID != nil && *req.ItemID <= 0 {
		return common.NewValidationError("itemId", "must be a positive integer")
	}
	return nil
}

type seedRequest struct {
	ItemID *int64 `json:"itemId"`
	Count  *int   `json:"count"`
}

func (req *seedRequest) validate() error {
	if req.ItemID != nil && *req.ItemID <= 0 {
		return common.NewValidationError("itemId", "must be a positive integer")
	}
	if req.Count != nil && (*req.Count < 1 || *req.Count > syncer.MaxSeedCount) {
		return common.NewValidationError("count", fmt.Sprintf("must be between 1 and %d", syncer.MaxSeedCount))
	}
	return nil
}

type exchangeRequest struct {
	PublicToken string `json:"public_token"`
}

func (req *exchangeRequest) validate() error {
	if strings.TrimSpace(req.PublicToken) == "" {
		return common.NewValidationError("public_token", "must not be empty")
	}
	return nil
}
