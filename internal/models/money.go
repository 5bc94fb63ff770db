package models

import "github.com/shopspring/decimal"

// CurrencyPlaces is the precision every stored amount is rounded to
const CurrencyPlaces = 2

// RoundCurrency applies banker's rounding at currency precision
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(CurrencyPlaces)
}

// NullAmount wraps an amount for nullable columns
func NullAmount(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
