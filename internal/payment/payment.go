// Package payment интегрирует внешний платёжный шлюз.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Status — состояние платежа в терминах бота.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

var ErrGateway = errors.New("payment: gateway error")

// Payment — созданный платёж: его id хранится на заказе, по ссылке
// RedirectURL пользователь уходит платить.
type Payment struct {
	ID          string
	Status      Status
	RedirectURL string
}

type Gateway interface {
	// CreatePayment создаёт платёж. Каждый вызов отправляет свой
	// ключ идемпотентности, поэтому повтор после ошибки создаёт
	// новый платёж, а не дубль старого.
	CreatePayment(ctx context.Context, amount decimal.Decimal, description string, metadata map[string]string) (*Payment, error)
	CheckStatus(ctx context.Context, id string) (Status, error)
	CancelPayment(ctx context.Context, id string) error
	Refund(ctx context.Context, id string, amount decimal.Decimal) (string, error)
}
