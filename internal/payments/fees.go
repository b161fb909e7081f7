package payments

import "github.com/shopspring/decimal"

// Split is the declared division of an order total between the platform and
// the provider. NetToProvider equals the total because Stripe performs the
// actual split at settlement from the declared application fee; the platform
// only states its cut up front.
type Split struct {
	PlatformFee   decimal.Decimal
	NetToProvider decimal.Decimal
}

// ComputeSplit returns the platform fee and net transfer amount for a total.
// The fee is total * feeRate rounded to 2 decimal places, half away from zero
// (shopspring's Round). Deterministic and side-effect free; the caller is
// responsible for total being positive.
func ComputeSplit(total, feeRate decimal.Decimal) Split {
	fee := total.Mul(feeRate).Round(2)
	return Split{
		PlatformFee:   fee,
		NetToProvider: total,
	}
}

// MinorUnits converts a 2-dp decimal amount into the smallest currency unit.
// Conversion happens only at the gateway boundary; everything else stays in
// decimal currency units.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
