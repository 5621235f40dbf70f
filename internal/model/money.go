package model

import "github.com/shopspring/decimal"

// ParseAmount converts a WooCommerce decimal string amount (e.g. "99.00")
// to a decimal. The REST v3 API serializes every monetary field as a string
// in major currency units. Empty or malformed values parse as zero so a
// single bad field never aborts an export.
// Examples: "99.00" → 99.00, "1234.56" → 1234.56, "" → 0
func ParseAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatAmount renders a decimal with two fractional digits, the format
// used for every monetary column in the CSV output.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
