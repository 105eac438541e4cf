// Package money handles the decimal amount strings that flow through
// plans, charges and platform payloads. Amounts stay strings at rest;
// arithmetic happens on decimals, never floats.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid_amount")

// SupportedCurrencies are the currencies a plan must price. Charges in
// any other currency are rejected, not converted.
var SupportedCurrencies = []string{"TRY", "USD", "EUR"}

// IsSupportedCurrency reports whether code is one of the currencies
// plans are priced in.
func IsSupportedCurrency(code string) bool {
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// iso4217 is the active ISO-4217 currency code set. Order payloads may
// arrive in any of these; plan pricing stays on SupportedCurrencies.
var iso4217 = map[string]struct{}{}

func init() {
	for _, code := range []string{
		"AED", "AFN", "ALL", "AMD", "ANG", "AOA", "ARS", "AUD", "AWG", "AZN",
		"BAM", "BBD", "BDT", "BGN", "BHD", "BIF", "BMD", "BND", "BOB", "BRL",
		"BSD", "BTN", "BWP", "BYN", "BZD", "CAD", "CDF", "CHF", "CLP", "CNY",
		"COP", "CRC", "CUP", "CVE", "CZK", "DJF", "DKK", "DOP", "DZD", "EGP",
		"ERN", "ETB", "EUR", "FJD", "FKP", "GBP", "GEL", "GHS", "GIP", "GMD",
		"GNF", "GTQ", "GYD", "HKD", "HNL", "HTG", "HUF", "IDR", "ILS", "INR",
		"IQD", "IRR", "ISK", "JMD", "JOD", "JPY", "KES", "KGS", "KHR", "KMF",
		"KPW", "KRW", "KWD", "KYD", "KZT", "LAK", "LBP", "LKR", "LRD", "LSL",
		"LYD", "MAD", "MDL", "MGA", "MKD", "MMK", "MNT", "MOP", "MRU", "MUR",
		"MVR", "MWK", "MXN", "MYR", "MZN", "NAD", "NGN", "NIO", "NOK", "NPR",
		"NZD", "OMR", "PAB", "PEN", "PGK", "PHP", "PKR", "PLN", "PYG", "QAR",
		"RON", "RSD", "RUB", "RWF", "SAR", "SBD", "SCR", "SDG", "SEK", "SGD",
		"SHP", "SLE", "SOS", "SRD", "SSP", "STN", "SVC", "SYP", "SZL", "THB",
		"TJS", "TMT", "TND", "TOP", "TRY", "TTD", "TWD", "TZS", "UAH", "UGX",
		"USD", "UYU", "UZS", "VES", "VND", "VUV", "WST", "XAF", "XCD", "XOF",
		"XPF", "YER", "ZAR", "ZMW", "ZWG",
	} {
		iso4217[code] = struct{}{}
	}
}

// IsRecognizedCurrency reports whether code is an active ISO-4217
// currency. Case-sensitive; callers normalize to upper case first.
func IsRecognizedCurrency(code string) bool {
	_, ok := iso4217[code]
	return ok
}

// Parse validates an amount string and returns it as a decimal. At
// most two fractional digits are allowed; negative amounts are
// rejected.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() || d.Exponent() < -2 {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Format renders a decimal as the canonical two-fraction-digit string
// used in responses and stored snapshots.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
