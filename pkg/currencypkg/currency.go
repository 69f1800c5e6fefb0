// Package currencypkg provides common currency related functionality for apps.
package currencypkg

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Constants for all supported currencies.
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	BTC = "BTC"
	ETH = "ETH"
)

// SupportedCurrencies holds all the supported currencies.
var SupportedCurrencies = []string{
	USD,
	EUR,
	GBP,
	BTC,
	ETH,
}

// usdRates is a fixed table of USD prices. It is not fed by market data.
var usdRates = map[string]decimal.Decimal{
	USD: decimal.NewFromInt(1),
	EUR: decimal.RequireFromString("1.1"),
	GBP: decimal.RequireFromString("1.25"),
	BTC: decimal.NewFromInt(45000),
	ETH: decimal.NewFromInt(2500),
}

// Amount bounds. Arithmetic on a decimal rescales it to its exponent, so an
// unbounded exponent costs unbounded time and memory.
const (
	maxAmountLen   = 40
	maxAmountScale = 18
	maxAmountBits  = 128
)

// ErrAmountOutOfRange indicates an amount too long, too large or too precise.
var ErrAmountOutOfRange = errors.New("amount out of range")

// ParseAmount parses s into a decimal within the amount bounds.
func ParseAmount(s string) (decimal.Decimal, error) {
	if len(s) > maxAmountLen {
		return decimal.Zero, ErrAmountOutOfRange
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}

	if err := CheckAmount(d); err != nil {
		return decimal.Zero, err
	}

	return d, nil
}

// CheckAmount reports whether d is within the amount bounds. It does no
// arithmetic on d.
func CheckAmount(d decimal.Decimal) error {
	if e := d.Exponent(); e < -maxAmountScale || e > maxAmountScale {
		return ErrAmountOutOfRange
	}

	if d.Coefficient().BitLen() > maxAmountBits {
		return ErrAmountOutOfRange
	}

	return nil
}

// IsSupportedCurrency returns true if the currncy is supported.
func IsSupportedCurrency(currency string) bool {
	for _, c := range SupportedCurrencies {
		if c == currency {
			return true
		}
	}

	return false
}

// USDRate returns the static USD price of one unit of currency.
//
// Unknown currencies are priced at 1.
func USDRate(currency string) decimal.Decimal {
	if r, ok := usdRates[currency]; ok {
		return r
	}

	return decimal.NewFromInt(1)
}

// ValidCurrency validates whether the currency is supported.
var ValidCurrency validator.Func = func(fl validator.FieldLevel) bool {
	if c, ok := fl.Field().Interface().(string); ok {
		return IsSupportedCurrency(c)
	}

	return false
}
