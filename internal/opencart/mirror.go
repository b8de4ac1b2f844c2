package opencart

import (
	"context"
	"log/slog"
	"time"

	"github.com/wifiobd/shopbot/internal/models"
)

// Orders — срез журнала заказов, нужный воркеру зеркалирования.
type Orders interface {
	GetWithUser(ctx context.Context, id uint) (*models.Order, error)
	SetOpencartOrderID(ctx context.Context, id uint, opencartOrderID int64) error
	SetMirrorState(ctx context.Context, id uint, state models.MirrorState) error
	Unmirrored(ctx context.Context, limit int) ([]models.Order, error)
}

type Users interface {
	UpdateOpencartID(ctx context.Context, id int64, customerID int64) error
}

// API — операции записи в OpenCart. Реализация — Client.
type API interface {
	CreateCustomer(ctx context.Context, customer Customer) (int64, error)
	CreateOrder(ctx context.Context, order *models.Order, customerID int64) (int64, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, statusID int) error
}

const rescanBatch = 20

// Mirror — фоновый воркер, дозеркаливающий оплаченные заказы в
// OpenCart. Сага из двух шагов с курсором mirror_state на заказе:
// сначала покупатель, потом заказ. Каждый шаг идемпотентен, при сбое
// заказ остаётся в выборке Unmirrored и дожимается при пересканировании.
// Витрина — зеркало, оплату в боте сбой зеркалирования не откатывает.
type Mirror struct {
	orders Orders
	users  Users
	api    API
	queue  chan uint
	period time.Duration
	log    *slog.Logger
}

func NewMirror(orders Orders, users Users, api API, period time.Duration, log *slog.Logger) *Mirror {
	if period <= 0 {
		period = time.Minute
	}
	return &Mirror{
		orders: orders,
		users:  users,
		api:    api,
		queue:  make(chan uint, 64),
		period: period,
		log:    log,
	}
}

// Enqueue ставит заказ в очередь зеркалирования. Не блокирует: если
// очередь заполнена, заказ подберёт пересканирование.
func (m *Mirror) Enqueue(orderID uint) {
	select {
	case m.queue <- orderID:
	default:
	}
}

// Run обрабатывает очередь и периодически пересканирует оплаченные
// незеркаленные заказы. Блокирует до отмены контекста.
func (m *Mirror) Run(ctx context.Context) {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case orderID := <-m.queue:
			if err := m.Process(ctx, orderID); err != nil {
				m.log.Error("ошибка зеркалирования заказа", "order_id", orderID, "error", err)
			}
		case <-ticker.C:
			m.rescan(ctx)
		}
	}
}

func (m *Mirror) rescan(ctx context.Context) {
	orders, err := m.orders.Unmirrored(ctx, rescanBatch)
	if err != nil {
		m.log.Error("ошибка выборки незеркаленных заказов", "error", err)
		return
	}

	for _, order := range orders {
		if err := m.Process(ctx, order.ID); err != nil {
			m.log.Error("ошибка зеркалирования заказа", "order_id", order.ID, "error", err)
		}
	}
}

// Process продвигает сагу зеркалирования одного заказа до конца или до
// первой ошибки. Продолжает с сохранённого курсора.
func (m *Mirror) Process(ctx context.Context, orderID uint) error {
	order, err := m.orders.GetWithUser(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status != models.OrderPaid && order.Status != models.OrderCompleted {
		return nil
	}
	if order.MirrorState == models.MirrorDone {
		return nil
	}

	var customerID int64
	if order.User != nil && order.User.OpencartCustomerID != nil {
		customerID = *order.User.OpencartCustomerID
	}

	// шаг 1: покупатель. Существующая учётка переиспользуется,
	// на пользователя бота заводится не больше одной.
	if customerID == 0 {
		customer := Customer{
			FirstName: order.CustomerName,
			Email:     order.CustomerEmail,
			Telephone: order.CustomerPhone,
		}
		if order.User != nil {
			customer.FirstName = firstNonEmpty(order.User.FirstName, order.CustomerName)
			customer.LastName = order.User.LastName
		}

		customerID, err = m.api.CreateCustomer(ctx, customer)
		if err != nil {
			return err
		}
		if err := m.users.UpdateOpencartID(ctx, order.UserID, customerID); err != nil {
			return err
		}
	}
	if order.MirrorState == models.MirrorNone {
		if err := m.orders.SetMirrorState(ctx, order.ID, models.MirrorCustomer); err != nil {
			return err
		}
	}

	// шаг 2: заказ
	opencartOrderID, err := m.api.CreateOrder(ctx, order, customerID)
	if err != nil {
		return err
	}
	if err := m.orders.SetOpencartOrderID(ctx, order.ID, opencartOrderID); err != nil {
		return err
	}
	if err := m.orders.SetMirrorState(ctx, order.ID, models.MirrorDone); err != nil {
		return err
	}

	m.log.Info("заказ дозеркален в opencart",
		"order_id", order.ID, "opencart_order_id", opencartOrderID, "customer_id", customerID)
	return nil
}

// PushStatus передаёт смену статуса уже зеркаленного заказа на
// витрину. Для незеркаленных заказов ничего не делает.
func (m *Mirror) PushStatus(ctx context.Context, order *models.Order) error {
	if order.OpencartOrderID == nil {
		return nil
	}

	statusID, ok := ocStatusID(order.Status)
	if !ok {
		return nil
	}
	return m.api.UpdateOrderStatus(ctx, *order.OpencartOrderID, statusID)
}

func ocStatusID(status models.OrderStatus) (int, bool) {
	switch status {
	case models.OrderPaid:
		return StatusProcessing, true
	case models.OrderCompleted:
		return StatusComplete, true
	case models.OrderCancelled:
		return StatusCanceled, true
	case models.OrderRefunded:
		return StatusRefunded, true
	default:
		return 0, false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
