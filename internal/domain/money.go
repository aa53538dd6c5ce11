package domain

import "fmt"

// Money is a fixed-point USD amount in nano-dollars (1e-9 USD).
type Money int64

// NanoUSD is the smallest representable amount.
const NanoUSD Money = 1

// USD is one dollar.
const USD Money = 1_000_000_000

// Dollars returns the amount as a float for display only.
func (m Money) Dollars() float64 {
	return float64(m) / float64(USD)
}

// String formats the amount with six decimals, rounding half up.
func (m Money) String() string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	micros := (int64(m) + 500) / 1000
	return fmt.Sprintf("%s$%d.%06d", sign, micros/1_000_000, micros%1_000_000)
}
