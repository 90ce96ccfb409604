package orders

import "github.com/shopspring/decimal"

// RoundMoney rounds to currency minor units (2 places, half away from zero).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotal is unit price times quantity, rounded.
func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return RoundMoney(unit.Mul(decimal.NewFromInt(int64(qty))))
}
