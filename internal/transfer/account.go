// Package transfer содержит правила перевода активов между основным
// аккаунтом и стратегиями: каноническую кодировку вариантов выбора,
// вычисление источников и получателей и проверку суммы.
//
// Пакет используется и сервером (повторная проверка перед проведением),
// и клиентом (заполнение списков в окне перевода).
package transfer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind - тип счета
type Kind string

const (
	KindMain     Kind = "main"
	KindStrategy Kind = "strategy"
)

const separator = "::"

var ErrInvalidOption = errors.New("invalid transfer option")

// Account - сторона перевода
//
// Кодировка значения:
//
//	main::<ASSET>
//	strategy::<strategyID>::<ASSET>
type Account struct {
	Kind       Kind
	StrategyID int
	Asset      string
}

// Main - основной аккаунт для актива
func Main(asset string) Account {
	return Account{Kind: KindMain, Asset: asset}
}

// StrategyAccount - актив внутри стратегии
func StrategyAccount(strategyID int, asset string) Account {
	return Account{Kind: KindStrategy, StrategyID: strategyID, Asset: asset}
}

// Value - каноническое значение варианта выбора
func (a Account) Value() string {
	if a.Kind == KindStrategy {
		return string(KindStrategy) + separator + strconv.Itoa(a.StrategyID) + separator + a.Asset
	}
	return string(KindMain) + separator + a.Asset
}

func (a Account) String() string {
	return a.Value()
}

// IsMain - основной аккаунт
func (a Account) IsMain() bool {
	return a.Kind == KindMain
}

// Parse разбирает значение варианта выбора
func Parse(value string) (Account, error) {
	parts := strings.Split(strings.TrimSpace(value), separator)

	switch {
	case len(parts) == 2 && parts[0] == string(KindMain):
		asset := normalizeAsset(parts[1])
		if asset == "" {
			return Account{}, fmt.Errorf("%w: %q", ErrInvalidOption, value)
		}
		return Main(asset), nil

	case len(parts) == 3 && parts[0] == string(KindStrategy):
		id, err := strconv.Atoi(parts[1])
		if err != nil || id <= 0 {
			return Account{}, fmt.Errorf("%w: %q", ErrInvalidOption, value)
		}
		asset := normalizeAsset(parts[2])
		if asset == "" {
			return Account{}, fmt.Errorf("%w: %q", ErrInvalidOption, value)
		}
		return StrategyAccount(id, asset), nil
	}

	return Account{}, fmt.Errorf("%w: %q", ErrInvalidOption, value)
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
