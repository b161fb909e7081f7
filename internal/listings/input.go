package listings

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/campusworks/campusworks-backend/pkg/enums"
	pkgerrors "github.com/campusworks/campusworks-backend/pkg/errors"
)

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price must be a decimal number")
	}
	if !price.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	return price.Round(2), nil
}

func parseCurrency(raw string) (enums.Currency, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return enums.CurrencyUSD, nil
	}
	currency, err := enums.ParseCurrency(value)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	return currency, nil
}
