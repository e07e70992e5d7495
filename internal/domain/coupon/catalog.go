package coupon

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Catalog is the fixed, process-wide set of coupons. It is built once at
// startup and never mutated afterwards.
type Catalog struct {
	rules map[string]Rule
}

// DefaultRules returns the coupons every storefront ships with.
func DefaultRules() []Rule {
	return []Rule{
		{
			Code:        "SAVE10",
			Kind:        KindPercentage,
			Value:       decimal.NewFromInt(10),
			MinPurchase: decimal.NewFromInt(50),
			Description: "10% off orders of $50 or more",
		},
		{
			Code:        "FLAT5",
			Kind:        KindFixed,
			Value:       decimal.NewFromInt(5),
			Description: "$5 off your order",
		},
		{
			Code:        "WELCOME20",
			Kind:        KindPercentage,
			Value:       decimal.NewFromInt(20),
			MinPurchase: decimal.NewFromInt(100),
			Description: "20% off orders of $100 or more",
		},
	}
}

// NewCatalog builds a catalog from rules. Codes are normalised, so later
// rules with the same code replace earlier ones.
func NewCatalog(rules ...Rule) *Catalog {
	c := &Catalog{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		r.Code = normalize(r.Code)
		if r.Code == "" {
			continue
		}
		c.rules[r.Code] = r
	}
	return c
}

// Extend returns a new catalog with rules added. Codes already present keep
// their existing rule.
func (c *Catalog) Extend(rules ...Rule) *Catalog {
	out := &Catalog{rules: make(map[string]Rule, len(c.rules)+len(rules))}
	for _, r := range rules {
		r.Code = normalize(r.Code)
		if r.Code == "" {
			continue
		}
		out.rules[r.Code] = r
	}
	for code, r := range c.rules {
		out.rules[code] = r
	}
	return out
}

// Find looks up a rule by code, ignoring case and surrounding whitespace.
func (c *Catalog) Find(code string) (Rule, bool) {
	r, ok := c.rules[normalize(code)]
	return r, ok
}

// Len returns the number of coupons in the catalog.
func (c *Catalog) Len() int {
	return len(c.rules)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
