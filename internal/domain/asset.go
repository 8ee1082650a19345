package domain

import (
	"strings"
	"time"
)

// Currency is an ISO currency code supported by the ledger
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyCLP Currency = "CLP"
)

// Valid reports whether the currency is one of the supported codes
func (c Currency) Valid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyCLP:
		return true
	}
	return false
}

// Asset is a priced instrument. Name and Symbol are each unique.
type Asset struct {
	ID       int64
	Name     string
	Symbol   string // empty when the asset has no ticker
	Currency Currency
}

// Label returns the symbol when present, otherwise the name
func (a *Asset) Label() string {
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.Name
}

// Validate ensures the asset adheres to domain rules
func (a *Asset) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return InvalidInput("asset name cannot be empty")
	}
	if !a.Currency.Valid() {
		return InvalidInput("unsupported asset currency %q", a.Currency)
	}
	return nil
}

// Portfolio owns every ledger, event, snapshot and value row written for it
type Portfolio struct {
	ID        int64
	UserID    int64
	Name      string
	CreatedAt time.Time // calendar date
	Currency  Currency
}

// Validate ensures the portfolio adheres to domain rules
func (p *Portfolio) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return InvalidInput("portfolio name cannot be empty")
	}
	if p.UserID == 0 {
		return InvalidInput("portfolio must have an owning user")
	}
	if !p.Currency.Valid() {
		return InvalidInput("unsupported portfolio currency %q", p.Currency)
	}
	return nil
}
