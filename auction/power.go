package auction

import "github.com/shopspring/decimal"

// PowerPrecision is the global precision constant P: one whole unit of any
// accepted asset normalizes to base power 10^P, regardless of the asset's
// native decimals.
const PowerPrecision int32 = 9

// MinBidPower is the minimum base power (pre-multiplier) a single bid must
// reach: one whole unit. Applies per call.
var MinBidPower = decimal.New(1, PowerPrecision)

// DefaultTiers is the default duration-tier multiplier table.
var DefaultTiers = []decimal.Decimal{
	decimal.NewFromInt(1),
	decimal.RequireFromString("1.5"),
	decimal.NewFromInt(2),
}

// BasePower converts a raw asset amount to normalized base power,
// truncating sub-unit dust: rawAmount × 10^(P − decimals), floored.
func BasePower(rawAmount decimal.Decimal, decimals int32) decimal.Decimal {
	return rawAmount.Shift(PowerPrecision - decimals).Floor()
}

// Power applies the tier multiplier to a base power. The result is floored
// so power stays an integral number of normalized units.
func Power(base decimal.Decimal, tiers []decimal.Decimal, tier int) decimal.Decimal {
	return base.Mul(tiers[tier]).Floor()
}
