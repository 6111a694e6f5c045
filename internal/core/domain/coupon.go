package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

type Coupon struct {
	Code      string
	Type      CouponType
	Value     decimal.Decimal
	MinAmount decimal.Decimal
}

var ErrInvalidCoupon = errors.New("invalid coupon")

// coupons is the fixed registry used by the pricing paths. Usage tracking
// lives outside the core.
var coupons = map[string]Coupon{
	"SAVE10":    {Code: "SAVE10", Type: CouponPercentage, Value: decimal.NewFromInt(10), MinAmount: decimal.NewFromInt(50)},
	"WELCOME20": {Code: "WELCOME20", Type: CouponPercentage, Value: decimal.NewFromInt(20), MinAmount: decimal.NewFromInt(100)},
	"FLAT15":    {Code: "FLAT15", Type: CouponFixed, Value: decimal.NewFromInt(15), MinAmount: decimal.NewFromInt(75)},
}

// EvaluateCoupon computes the discount for a coupon code against a subtotal.
// Pure function: unknown codes and unmet minimums return an error and a zero
// discount; a fixed discount never exceeds the subtotal.
func EvaluateCoupon(code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	coupon, ok := coupons[code]
	if !ok {
		return decimal.Zero, ErrInvalidCoupon
	}
	if subtotal.LessThan(coupon.MinAmount) {
		return decimal.Zero, fmt.Errorf("minimum order amount of $%s required", coupon.MinAmount.StringFixed(0))
	}
	switch coupon.Type {
	case CouponPercentage:
		return subtotal.Mul(coupon.Value).Div(decimal.NewFromInt(100)), nil
	case CouponFixed:
		if coupon.Value.GreaterThan(subtotal) {
			return subtotal, nil
		}
		return coupon.Value, nil
	default:
		return decimal.Zero, ErrInvalidCoupon
	}
}
