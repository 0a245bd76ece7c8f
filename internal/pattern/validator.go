package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
)

// MaxPatternLength bounds rule patterns.
const MaxPatternLength = 256

// ValidateRule checks a rule before it is stored: a known match type, a
// non-blank pattern and category, and a regex that compiles.
func ValidateRule(rule Rule) error {
	if !rule.MatchType.Valid() {
		return common.NewValidationError("matchType", fmt.Sprintf("must be %q or %q", model.MatchContains, model.MatchRegex))
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		return common.NewValidationError("pattern", "must not be empty")
	}
	if len(rule.Pattern) > MaxPatternLength {
		return common.NewValidationError("pattern", fmt.Sprintf("must be at most %d bytes", MaxPatternLength))
	}
	if strings.TrimSpace(rule.Category) == "" {
		return common.NewValidationError("category", "must not be empty")
	}
	if rule.MatchType == model.MatchRegex {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return common.NewValidationError("pattern", err.Error())
		}
	}
	return nil
}
