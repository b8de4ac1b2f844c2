// Package catalog читает каталог внешнего магазина OpenCart.
// Только чтение: записи в витрину идут через её HTTP API (пакет opencart).
package catalog

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("catalog: not found")

// Product — единая форма товара для всего бота: каталог, корзина и
// снимки заказов используют её без повторного разбора.
type Product struct {
	ID          int64           `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Model       string          `json:"model"`
	SKU         string          `json:"sku"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Image       string          `json:"image"`
	CategoryID  int64           `json:"category_id"`
}

func (p Product) InStock() bool { return p.Quantity > 0 }

type Category struct {
	ID        int64  `json:"category_id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	ParentID  int64  `json:"parent_id"`
	SortOrder int    `json:"sort_order"`
}
