package model

import (
	"strings"
	"unicode"
)

// CategoryUncategorized is the label for transactions with no override,
// no rule match and no provider category.
const CategoryUncategorized = "UNCATEGORIZED"

// Provider primary categories for internal transfers. Transactions in these
// categories are left out of spend aggregation.
const (
	CategoryTransferIn  = "TRANSFER_IN"
	CategoryTransferOut = "TRANSFER_OUT"
)

// ExcludedPrimaryCategories lists provider primary categories that never
// count as spend.
var ExcludedPrimaryCategories = []string{CategoryTransferIn, CategoryTransferOut}

// IsExcludedPrimary reports whether a provider primary category is excluded
// from spend aggregation.
func IsExcludedPrimary(primary *string) bool {
	if primary == nil {
		return false
	}
	for _, c := range ExcludedPrimaryCategories {
		if *primary == c {
			return true
		}
	}
	return false
}

// DefaultCategories are the suggested user-facing category labels.
var DefaultCategories = []string{
	"Food & Dining",
	"Groceries",
	"Coffee",
	"Shopping",
	"Bills & Utilities",
	"Rent/Mortgage",
	"Travel",
	"Transportation",
	"Gas",
	"Entertainment",
	"Health & Fitness",
	"Medical",
	"Education",
	"Gifts & Donations",
	"Personal Care",
	"Subscriptions",
	"Home",
	"Kids",
	"Pets",
	"Taxes",
	"Fees",
	"Other",
}

// FormatCategoryLabel turns a provider label such as FOOD_AND_DRINK into
// "Food And Drink". User labels pass through with each word title-cased.
func FormatCategoryLabel(s string) string {
	if s == "" {
		return s
	}
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
