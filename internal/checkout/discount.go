package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"kasirtoko/backend/internal/domain"
)

// ApplyDiscount returns the discount taken off subtotal, clamped to
// [0, subtotal]. Percent discounts round half up to the whole rupiah.
func ApplyDiscount(subtotal int64, spec domain.DiscountSpec) (int64, error) {
	if spec.Value < 0 {
		return 0, fmt.Errorf("%w: value must not be negative", domain.ErrInvalidDiscount)
	}

	var discount int64
	switch spec.Kind {
	case domain.DiscountNone:
		if spec.Value != 0 {
			return 0, fmt.Errorf("%w: kind is required when a value is given", domain.ErrInvalidDiscount)
		}
		return 0, nil
	case domain.DiscountAmount:
		discount = spec.Value
	case domain.DiscountPercent:
		if spec.Value > 100 {
			return 0, fmt.Errorf("%w: percent must be between 0 and 100", domain.ErrInvalidDiscount)
		}
		discount = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(spec.Value)).
			Shift(-2).
			Round(0).
			IntPart()
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidDiscount, spec.Kind)
	}

	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount, nil
}
