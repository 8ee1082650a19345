package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsset_Validate(t *testing.T) {
	tests := []struct {
		name    string
		asset   Asset
		wantErr bool
		errMsg  string
	}{
		{"valid asset", Asset{Name: "Europe", Symbol: "EU", Currency: CurrencyUSD}, false, ""},
		{"asset without symbol", Asset{Name: "Cash", Currency: CurrencyCLP}, false, ""},
		{"empty name", Asset{Name: "  ", Currency: CurrencyUSD}, true, "asset name cannot be empty"},
		{"unknown currency", Asset{Name: "UK", Currency: "GBP"}, true, "unsupported asset currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.asset.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAsset_Label(t *testing.T) {
	assert.Equal(t, "EU", (&Asset{Name: "Europe", Symbol: "EU"}).Label())
	assert.Equal(t, "Europe", (&Asset{Name: "Europe"}).Label())
}

func TestPortfolio_Validate(t *testing.T) {
	assert.NoError(t, (&Portfolio{Name: "portfolio_1", UserID: 1, Currency: CurrencyUSD}).Validate())
	assert.Error(t, (&Portfolio{Name: "portfolio_1", Currency: CurrencyUSD}).Validate())
	assert.Error(t, (&Portfolio{UserID: 1, Currency: CurrencyUSD}).Validate())
}
