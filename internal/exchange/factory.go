package exchange

import (
	"fmt"
	"sort"
	"strings"
)

// Constructor создает адаптер биржи из конфигурации
type Constructor func(cfg Config) Exchange

// registry - адаптеры по имени биржи (в нижнем регистре)
var registry = map[string]Constructor{
	"coinbase": func(cfg Config) Exchange { return NewCoinbase(cfg) },
}

// SupportedExchanges - имена бирж в алфавитном порядке
var SupportedExchanges = supportedNames()

func supportedNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewExchange создает адаптер по имени биржи без учета регистра
func NewExchange(name string, cfg Config) (Exchange, error) {
	build, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExchange, name)
	}
	return build(cfg), nil
}

// IsSupported - есть ли адаптер для биржи
func IsSupported(name string) bool {
	_, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
