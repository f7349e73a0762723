package terms

import (
	"fmt"
	"math"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/validate"
)

const percentageTolerance = 0.01

// Validate checks doc and reports every violated field in one error.
// Free text is checked after trimming, the same form that is hashed.
func Validate(doc Document) error {
	fields := Violations(doc)
	if len(fields) == 0 {
		return nil
	}
	return errs.Validation(fields...)
}

// Violations returns every rule doc breaks, or nil.
func Violations(doc Document) []errs.FieldError {
	t := doc.Trimmed()
	fields := validate.Struct(t)

	if len(t.Deliverables) > 0 {
		var sum float64
		for _, d := range t.Deliverables {
			sum += d.PercentageOfTotal
		}
		if math.Abs(sum-100) >= percentageTolerance {
			fields = append(fields, errs.FieldError{
				Field:   "deliverables",
				Message: fmt.Sprintf("percentages must sum to 100 (got %g)", sum),
			})
		}
	}
	return fields
}
