package models

// TradingPair - торговая пара Coinbase (справочные данные)
type TradingPair struct {
	ProductID     string `json:"product_id"`
	BaseCurrency  string `json:"base_currency"`
	QuoteCurrency string `json:"quote_currency"`
}
