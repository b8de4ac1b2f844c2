// Package notify публикует события заказов и обращений в Kafka.
// Публикация best-effort: сбой брокера логируется и не ломает
// пользовательский сценарий.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wifiobd/shopbot/internal/models"
)

const (
	TopicOrderEvents  = "order_events"
	TopicTicketEvents = "ticket_events"
)

// OrderEvent — событие смены статуса заказа.
type OrderEvent struct {
	OrderID   uint               `json:"order_id"`
	UserID    int64              `json:"user_id"`
	Status    models.OrderStatus `json:"status"`
	Amount    string             `json:"amount"`
	PaymentID string             `json:"payment_id,omitempty"`
	At        time.Time          `json:"at"`
}

// TicketEvent — событие по обращению в поддержку.
type TicketEvent struct {
	TicketID uint                `json:"ticket_id"`
	UserID   int64               `json:"user_id"`
	Status   models.TicketStatus `json:"status"`
	At       time.Time           `json:"at"`
}

type Producer struct {
	orders  *kafka.Writer
	tickets *kafka.Writer
	log     *slog.Logger
}

func NewProducer(address string, log *slog.Logger) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:                   kafka.TCP(address),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		}
	}

	return &Producer{
		orders:  newWriter(TopicOrderEvents),
		tickets: newWriter(TopicTicketEvents),
		log:     log,
	}
}

// OrderStatusChanged публикует событие заказа. Ключ — id заказа,
// события одного заказа попадают в одну партицию и сохраняют порядок.
func (p *Producer) OrderStatusChanged(ctx context.Context, order *models.Order) {
	event := OrderEvent{
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  order.Status,
		Amount:  order.Amount.StringFixed(2),
		At:      time.Now().UTC(),
	}
	if order.PaymentID != nil {
		event.PaymentID = *order.PaymentID
	}

	p.publish(ctx, p.orders, fmt.Sprint(order.ID), event)
}

func (p *Producer) TicketChanged(ctx context.Context, ticket *models.SupportTicket) {
	event := TicketEvent{
		TicketID: ticket.ID,
		UserID:   ticket.UserID,
		Status:   ticket.Status,
		At:       time.Now().UTC(),
	}

	p.publish(ctx, p.tickets, fmt.Sprint(ticket.ID), event)
}

func (p *Producer) publish(ctx context.Context, w *kafka.Writer, key string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		p.log.Error("kafka: не удалось сериализовать событие", "topic", w.Topic, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data}); err != nil {
		p.log.Error("kafka: не удалось опубликовать событие", "topic", w.Topic, "key", key, "error", err)
	}
}

func (p *Producer) Close() error {
	if err := p.orders.Close(); err != nil {
		return err
	}
	return p.tickets.Close()
}
