package ingest

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-funnel/internal/domain/coupon"
)

// DefaultRule is bound to discovered codes without a dedicated rule.
var DefaultRule = coupon.Rule{
	Kind:        coupon.KindPercentage,
	Value:       decimal.NewFromInt(10),
	Description: "Valid promo code: 10% off",
}

var knownRules = map[string]coupon.Rule{
	"FIFTYOFF": {Kind: coupon.KindPercentage, Value: decimal.NewFromInt(50), Description: "50% off entire order"},
	"SIXTYOFF": {Kind: coupon.KindPercentage, Value: decimal.NewFromInt(60), Description: "60% off entire order"},
	"FREEZAAA": {Kind: coupon.KindPercentage, Value: decimal.NewFromInt(100), Description: "Everything free!"},
	"GNULINUX": {Kind: coupon.KindPercentage, Value: decimal.NewFromInt(15), Description: "Open source discount: 15% off"},
	"OVER9000": {Kind: coupon.KindFixed, Value: decimal.NewFromInt(9), Description: "$9 off your order"},
	"HAPPYHRS": {Kind: coupon.KindPercentage, Value: decimal.NewFromInt(18), Description: "Happy Hours: 18% off"},
}

// Rules binds each code to its dedicated rule, or to DefaultRule.
func Rules(codes []string) []coupon.Rule {
	out := make([]coupon.Rule, 0, len(codes))
	for _, code := range codes {
		r, ok := knownRules[code]
		if !ok {
			r = DefaultRule
		}
		r.Code = code
		out = append(out, r)
	}
	return out
}
