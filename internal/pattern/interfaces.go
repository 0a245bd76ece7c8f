// Package pattern evaluates user categorization rules against transaction text.
package pattern

import "github.com/Veraticus/spiceflow/internal/model"

// Matcher finds the rule that categorizes a transaction.
type Matcher interface {
	// Match returns the first rule, by ascending id, whose pattern matches
	// any of the transaction's searchable fields.
	Match(txn *model.Transaction) (*Rule, bool)
}

// Rule is an alias to the model.Rule type for convenience.
type Rule = model.Rule
