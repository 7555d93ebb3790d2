package service

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
	customError "github.com/sunksun/mekong-fish-payments/pkg/errors"
)

// DefaultPayoutTiers are used when no tiers are configured.
var DefaultPayoutTiers = map[string]decimal.Decimal{
	"basic":    decimal.NewFromInt(300),
	"standard": decimal.NewFromInt(500),
	"premium":  decimal.NewFromInt(1000),
}

// PayoutCalculator resolves a rate selector into a flat payout. The amount
// is per reconciliation: it does not depend on how many records, or how
// much weight or value, the payment covers.
type PayoutCalculator struct {
	tiers map[string]decimal.Decimal
}

func NewPayoutCalculator(tiers map[string]decimal.Decimal) *PayoutCalculator {
	if len(tiers) == 0 {
		tiers = DefaultPayoutTiers
	}
	normalized := make(map[string]decimal.Decimal, len(tiers))
	for name, amount := range tiers {
		normalized[strings.ToLower(strings.TrimSpace(name))] = amount
	}
	return &PayoutCalculator{tiers: normalized}
}

// Tiers returns a copy of the tier table.
func (c *PayoutCalculator) Tiers() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(c.tiers))
	for name, amount := range c.tiers {
		out[name] = amount
	}
	return out
}

// Resolve validates sel and returns the payable amount. recordCount is
// carried on the result for display only.
func (c *PayoutCalculator) Resolve(sel domain.RateSelector, recordCount int) (domain.Payout, error) {
	tier := strings.ToLower(strings.TrimSpace(sel.Tier))
	if tier == domain.RateTierCustom {
		if sel.Custom == nil {
			return domain.Payout{}, customError.WrapValidation("a custom amount is required for the custom rate")
		}
		tier = ""
	}

	var rate decimal.Decimal
	switch {
	case tier != "" && sel.Custom != nil:
		return domain.Payout{}, customError.WrapValidation("choose either a rate tier or a custom amount, not both")
	case tier == "" && sel.Custom == nil:
		return domain.Payout{}, customError.WrapValidation("a rate tier or custom amount is required")
	case sel.Custom != nil:
		rate = *sel.Custom
		if !rate.IsPositive() {
			return domain.Payout{}, customError.WrapValidation("custom amount must be greater than 0, got %s", rate.String())
		}
		if !rate.Equal(rate.Round(2)) {
			return domain.Payout{}, customError.WrapValidation("custom amount %s has more than 2 decimal places", rate.String())
		}
		tier = domain.RateTierCustom
	default:
		amount, ok := c.tiers[tier]
		if !ok {
			return domain.Payout{}, customError.WrapValidation("unknown rate tier %q", sel.Tier)
		}
		rate = amount
	}

	// Round to 2 decimal places for currency
	rate = rate.Round(2)
	if !rate.IsPositive() {
		return domain.Payout{}, customError.WrapValidation("payout amount must be greater than 0, got %s", rate.String())
	}

	return domain.Payout{
		Tier:        tier,
		Rate:        rate,
		Amount:      rate,
		RecordCount: recordCount,
	}, nil
}
