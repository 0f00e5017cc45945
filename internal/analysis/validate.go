package analysis

import (
	"fmt"
	"regexp"

	"FinSheet/internal/model"
)

// MaxYears bounds the requested window; the provider serves at most a few
// decades of history.
const MaxYears = 50

// symbolPattern is the only accepted ticker shape: 1-5 uppercase letters.
var symbolPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// ValidateSymbol reports whether symbol is a well-formed ticker.
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol %q: expected 1-5 uppercase letters", symbol)
	}
	return nil
}

// ValidateRequest runs the pre-flight checks that stop a run before it
// starts. Everything past this point degrades instead of failing.
func ValidateRequest(req Request) error {
	if err := ValidateSymbol(req.Symbol); err != nil {
		return err
	}
	if _, err := model.ParsePeriod(string(req.Period)); err != nil {
		return err
	}
	if req.Years < 1 || req.Years > MaxYears {
		return fmt.Errorf("years must be between 1 and %d, got %d", MaxYears, req.Years)
	}
	return nil
}
