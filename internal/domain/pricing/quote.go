// Package pricing computes the amount charged now for a course under a payment plan.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Plan string

const (
	PlanFull         Plan = "FULL"
	PlanInstallment2 Plan = "INSTALLMENT_2"
	PlanInstallment4 Plan = "INSTALLMENT_4"
)

// MinimumCharge is the floor for any quote; providers reject zero-amount orders.
const MinimumCharge int64 = 1

var (
	fullFactor         = decimal.RequireFromString("0.80")
	installment2Factor = decimal.RequireFromString("0.90")
	two                = decimal.NewFromInt(2)
	four               = decimal.NewFromInt(4)
)

// ParsePlan never fails: unknown or empty input falls back to FULL.
func ParsePlan(s string) Plan {
	switch p := Plan(strings.ToUpper(strings.TrimSpace(s))); p {
	case PlanFull, PlanInstallment2, PlanInstallment4:
		return p
	default:
		return PlanFull
	}
}

// InstallmentCount is how many times the quoted amount is charged in total.
func InstallmentCount(plan Plan) int {
	switch ParsePlan(string(plan)) {
	case PlanInstallment2:
		return 2
	case PlanInstallment4:
		return 4
	default:
		return 1
	}
}

// ReferencePrice is the discounted price when present, else the base price.
func ReferencePrice(price int64, discounted *int64) int64 {
	if discounted != nil {
		return *discounted
	}
	return price
}

// Quote returns the amount due now, in minor units.
//
//	FULL          round(p * 0.80)
//	INSTALLMENT_2 round(round(p * 0.90) / 2)
//	INSTALLMENT_4 round(p / 4)
//
// Rounding is half away from zero. The order of rounding and division differs
// per plan and is kept as-is so existing prices do not move.
func Quote(referencePrice int64, plan Plan) int64 {
	p := decimal.NewFromInt(referencePrice)

	var amount decimal.Decimal
	switch ParsePlan(string(plan)) {
	case PlanInstallment2:
		amount = roundHalfAway(roundHalfAway(p.Mul(installment2Factor)).Div(two))
	case PlanInstallment4:
		amount = roundHalfAway(p.Div(four))
	default:
		amount = roundHalfAway(p.Mul(fullFactor))
	}

	v := amount.IntPart()
	if v < MinimumCharge {
		return MinimumCharge
	}
	return v
}

func roundHalfAway(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}
