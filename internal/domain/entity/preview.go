// Package entity defines the core domain entities and validation logic for the application.
// The central object is Preview: the normalized metadata record returned for a
// product page (title, image, price, currency, site name and the resolved URL).
package entity

import (
	"math"
	"regexp"
	"strings"
)

// Preview is the structured result of extracting metadata from one page.
//
// Optional fields are nil when the value is absent. A present field always holds
// a trimmed, non-empty value; an empty string never stands in for "no value".
// SourceURL is mandatory and equals the last URL of the redirect chain.
type Preview struct {
	Title     *string
	Image     *string
	Price     *float64
	Currency  *string
	SiteName  *string
	SourceURL string
}

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// HasSignal reports whether the preview carries any of title, image or price.
// The extraction cascade uses this to decide whether a tier produced a result.
func (p *Preview) HasSignal() bool {
	if p == nil {
		return false
	}
	return p.Title != nil || p.Image != nil || p.Price != nil
}

// Validate checks the Preview invariants.
func (p *Preview) Validate() error {
	if strings.TrimSpace(p.SourceURL) == "" {
		return &ValidationError{Field: "sourceUrl", Message: "sourceUrl is required"}
	}
	for field, v := range map[string]*string{
		"title":    p.Title,
		"image":    p.Image,
		"currency": p.Currency,
		"siteName": p.SiteName,
	} {
		if v != nil && (*v == "" || strings.TrimSpace(*v) != *v) {
			return &ValidationError{Field: field, Message: "must be trimmed and non-empty when present"}
		}
	}
	if p.Currency != nil && !currencyCodePattern.MatchString(*p.Currency) {
		return &ValidationError{Field: "currency", Message: "must be a 3-letter upper-case code"}
	}
	if p.Price != nil && (math.IsNaN(*p.Price) || math.IsInf(*p.Price, 0)) {
		return &ValidationError{Field: "price", Message: "must be a finite number"}
	}
	return nil
}

// OptionalText trims s and returns nil when nothing is left.
func OptionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// OptionalCurrency upper-cases a currency code and keeps it only when it is
// a 3-letter code.
func OptionalCurrency(s string) *string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !currencyCodePattern.MatchString(s) {
		return nil
	}
	return &s
}

// OptionalPrice rounds v to 2 decimal places. Non-finite values are absent.
func OptionalPrice(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	rounded := math.Round(v*100) / 100
	return &rounded
}
