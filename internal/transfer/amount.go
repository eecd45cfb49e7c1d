package transfer

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationError - ошибка ввода, блокирует отправку до любого запроса
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ParseAmount разбирает сумму перевода: положительное десятичное число
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, &ValidationError{Field: "amount", Message: "please enter an amount"}
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, &ValidationError{Field: "amount", Message: "amount must be a positive number"}
	}
	return amount, nil
}

// ValidateAmount разбирает сумму и сравнивает с доступным остатком
func ValidateAmount(raw string, available decimal.Decimal) (decimal.Decimal, error) {
	amount, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}

	if amount.GreaterThan(available) {
		return decimal.Zero, &ValidationError{
			Field:   "amount",
			Message: "amount exceeds available balance of " + available.String(),
		}
	}

	return amount, nil
}
