package dto

import "rentdesk/internal/domain/shared/money"

// MoneyDTO carries minor units plus a two-decimal rendering for display.
type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

func MapMoney(m money.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount, Currency: m.Currency, Display: m.String()}
}

func mapOptionalMoney(m *money.Money) *MoneyDTO {
	if m == nil {
		return nil
	}
	out := MapMoney(*m)
	return &out
}
