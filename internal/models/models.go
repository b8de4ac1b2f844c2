package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User — пользователь Telegram. Создаётся при первом контакте,
// контактные поля заполняются по ходу оформления заказа.
// Записи никогда не удаляются.
type User struct {
	ID                 int64  `gorm:"primaryKey"                json:"id"`
	OpencartCustomerID *int64 `gorm:"index"                     json:"opencart_customer_id,omitempty"`
	Username           string `gorm:"size:255"                  json:"username"`
	FirstName          string `gorm:"size:255"                  json:"first_name"`
	LastName           string `gorm:"size:255"                  json:"last_name"`
	Phone              string `gorm:"size:20"                   json:"phone"`
	Email              string `gorm:"size:255"                  json:"email"`
	IsActive           bool   `gorm:"default:true"              json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
	OrderCompleted OrderStatus = "completed"
	OrderRefunded  OrderStatus = "refunded"
)

// orderTransitions задаёт допустимые переходы статуса.
// Все переходы однонаправленные, возврата в pending нет.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderPaid, OrderCancelled},
	OrderPaid:    {OrderCompleted, OrderRefunded},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MirrorState — курсор саги зеркалирования заказа в OpenCart.
type MirrorState string

const (
	MirrorNone     MirrorState = ""
	MirrorCustomer MirrorState = "customer"
	MirrorDone     MirrorState = "done"
)

// OrderItem — снимок позиции на момент создания заказа.
// Цена фиксируется здесь и не следует за каталогом.
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Model     string          `json:"model"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Order — заказ, созданный через бота.
type Order struct {
	ID              uint        `gorm:"primaryKey;autoIncrement"       json:"id"`
	UserID          int64       `gorm:"index;not null"                 json:"user_id"`
	User            *User       `gorm:"foreignKey:UserID"              json:"user,omitempty"`
	OpencartOrderID *int64      `gorm:"index"                          json:"opencart_order_id,omitempty"`
	PaymentID       *string     `gorm:"size:255;uniqueIndex"           json:"payment_id,omitempty"`
	Amount          decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Status          OrderStatus `gorm:"size:50;default:pending"        json:"status"`
	CustomerName    string      `gorm:"size:255"                       json:"customer_name"`
	CustomerPhone   string      `gorm:"size:20"                        json:"customer_phone"`
	CustomerEmail   string      `gorm:"size:255"                       json:"customer_email"`
	DeliveryAddress string      `gorm:"type:text"                      json:"delivery_address"`
	DeliveryComment string      `gorm:"type:text"                      json:"delivery_comment"`
	Items           []OrderItem `gorm:"serializer:json;not null"       json:"items"`
	MirrorState     MirrorState `gorm:"size:20;default:''"             json:"mirror_state"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	PaidAt          *time.Time  `json:"paid_at,omitempty"`
}

type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketAnswered TicketStatus = "answered"
	TicketClosed   TicketStatus = "closed"
)

type SupportTicket struct {
	ID            uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64        `gorm:"index;not null"           json:"user_id"`
	User          *User        `gorm:"foreignKey:UserID"        json:"user,omitempty"`
	Message       string       `gorm:"type:text;not null"       json:"message"`
	AdminResponse string       `gorm:"type:text"                json:"admin_response"`
	Status        TicketStatus `gorm:"size:20;default:open"     json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	AnsweredAt    *time.Time   `json:"answered_at,omitempty"`
	ClosedAt      *time.Time   `json:"closed_at,omitempty"`
}
