package models

import "github.com/shopspring/decimal"

// Balances are stored as NUMERIC(BalancePrecision, BalanceScale) in
// PostgreSQL and decimal(BalancePrecision,BalanceScale) in MySQL.
const (
	BalancePrecision = 20
	BalanceScale     = 4
)

// MaxBalance is the smallest magnitude the balance column cannot hold.
var MaxBalance = decimal.New(1, BalancePrecision-BalanceScale)

// Representable reports whether d can be stored in a balance column
// without rounding or overflow.
func Representable(d decimal.Decimal) bool {
	return d.Truncate(BalanceScale).Equal(d) && d.Abs().LessThan(MaxBalance)
}
