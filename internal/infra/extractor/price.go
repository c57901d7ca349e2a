package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"centscape-preview/internal/domain/entity"
)

// pricePattern finds one currency marker followed by an amount with zero or
// two fractional digits. Only the first match in the text is used.
//
// Known limitation: grouped thousands are not understood, so "$1,299.00"
// reads as 1.29 USD. Multiple prices in one text are not disambiguated.
var pricePattern = regexp.MustCompile(`(?i)([€£$₹]|USD|EUR|GBP|INR)\s*([0-9]+(?:[.,][0-9]{2})?)`)

var symbolCurrencies = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"₹": "INR",
}

// ScanPrice extracts the first price and currency from free text.
//
// Example:
//
//	ScanPrice("now only $79.99!")  // 79.99, "USD"
//	ScanPrice("eur 12,50")         // 12.50, "EUR"
//	ScanPrice("call for price")    // nil, nil
func ScanPrice(text string) (*float64, *string) {
	m := pricePattern.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}

	currency, ok := symbolCurrencies[m[1]]
	if !ok {
		currency = strings.ToUpper(m[1])
	}

	// カンマは小数点として扱う (12,50 → 12.50)
	amount, err := strconv.ParseFloat(strings.Replace(m[2], ",", ".", 1), 64)
	if err != nil {
		return nil, nil
	}

	return entity.OptionalPrice(amount), &currency
}

// leadingDecimal matches the numeric prefix of a plain decimal literal.
var leadingDecimal = regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)?`)

// parsePlainPrice reads a structured price value such as "199.99".
// It accepts a numeric prefix ("199.99 USD") and rejects negative or
// non-numeric input.
func parsePlainPrice(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		if v < 0 {
			return nil
		}
		return entity.OptionalPrice(v)
	}
	prefix := leadingDecimal.FindString(raw)
	if prefix == "" {
		return nil
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return nil
	}
	return entity.OptionalPrice(v)
}
