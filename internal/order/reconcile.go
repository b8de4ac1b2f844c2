package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wifiobd/shopbot/internal/models"
	"github.com/wifiobd/shopbot/internal/payment"
)

// CartClearer очищает корзину пользователя после оплаты.
type CartClearer interface {
	Clear(ctx context.Context, userID int64) error
}

// MirrorQueue принимает id оплаченного заказа на дозеркаливание
// в OpenCart. Реализация — opencart.Mirror.
type MirrorQueue interface {
	Enqueue(orderID uint)
}

// Events публикует события заказа. Может быть nil, тогда события
// просто не отправляются.
type Events interface {
	OrderStatusChanged(ctx context.Context, order *models.Order)
}

// Reconciler связывает журнал заказов с платёжным шлюзом: создаёт
// платежи, опрашивает их статус и фиксирует оплату ровно один раз.
type Reconciler struct {
	orders  *Service
	cart    CartClearer
	gateway payment.Gateway
	mirror  MirrorQueue
	events  Events
	log     *slog.Logger
}

func NewReconciler(orders *Service, cart CartClearer, gateway payment.Gateway, mirror MirrorQueue, events Events, log *slog.Logger) *Reconciler {
	return &Reconciler{
		orders:  orders,
		cart:    cart,
		gateway: gateway,
		mirror:  mirror,
		events:  events,
		log:     log,
	}
}

// StartPayment создаёт платёж в шлюзе и привязывает его к заказу.
// Допустим только для pending-заказа. При ошибке шлюза заказ остаётся
// pending без ссылки на платёж, повторный вызов создаёт новый платёж
// для того же заказа.
func (r *Reconciler) StartPayment(ctx context.Context, orderID uint) (*payment.Payment, error) {
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderPending {
		return nil, fmt.Errorf("%w: заказ %d уже %s", ErrConflict, order.ID, order.Status)
	}

	description := fmt.Sprintf("Оплата заказа №%d", order.ID)
	p, err := r.gateway.CreatePayment(ctx, order.Amount, description, map[string]string{
		"order_id": fmt.Sprint(order.ID),
		"user_id":  fmt.Sprint(order.UserID),
	})
	if err != nil {
		return nil, err
	}

	if err := r.orders.AttachPayment(ctx, order.ID, p.ID); err != nil {
		// платёж создан, но ссылку сохранить не удалось: заказ мог
		// успеть сменить статус. Отменяем платёж, чтобы не висел.
		if cancelErr := r.gateway.CancelPayment(ctx, p.ID); cancelErr != nil {
			r.log.Error("не удалось отменить осиротевший платёж",
				"payment_id", p.ID, "order_id", order.ID, "error", cancelErr)
		}
		return nil, err
	}

	r.log.Info("платёж привязан к заказу", "order_id", order.ID, "payment_id", p.ID)
	return p, nil
}

// CheckPayment опрашивает шлюз и при успешной оплате фиксирует её:
// заказ переводится в paid, затем очищается корзина, затем заказ
// уходит в очередь зеркалирования. Вызов идемпотентен: повторная
// проверка уже оплаченного заказа ничего не делает.
func (r *Reconciler) CheckPayment(ctx context.Context, orderID uint) (payment.Status, error) {
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return payment.StatusError, err
	}

	// оплата уже зафиксирована — шлюз можно не спрашивать
	if order.Status == models.OrderPaid || order.Status == models.OrderCompleted {
		return payment.StatusSucceeded, nil
	}
	if order.PaymentID == nil {
		return payment.StatusError, ErrNoPayment
	}

	status, err := r.gateway.CheckStatus(ctx, *order.PaymentID)
	if err != nil {
		return payment.StatusError, err
	}
	if status != payment.StatusSucceeded {
		return status, nil
	}

	updated, err := r.orders.UpdateStatus(ctx, order.ID, models.OrderPaid)
	if errors.Is(err, ErrConflict) {
		// конкурентная проверка успела раньше, оплата уже учтена
		return payment.StatusSucceeded, nil
	}
	if err != nil {
		return payment.StatusError, err
	}

	// корзина очищается только после того, как оплата сохранена:
	// при сбое здесь пользователь теряет меньше, чем при обратном
	// порядке
	if err := r.cart.Clear(ctx, order.UserID); err != nil {
		r.log.Error("не удалось очистить корзину после оплаты",
			"order_id", order.ID, "user_id", order.UserID, "error", err)
	}

	if r.events != nil {
		r.events.OrderStatusChanged(ctx, updated)
	}
	if r.mirror != nil {
		r.mirror.Enqueue(order.ID)
	}

	r.log.Info("оплата заказа подтверждена", "order_id", order.ID, "payment_id", *order.PaymentID)
	return payment.StatusSucceeded, nil
}

// Cancel отменяет неоплаченный заказ. Оплаченный заказ отменить
// нельзя, возвращается ErrConflict: дальше только возврат через
// поддержку. Повторная отмена — no-op.
func (r *Reconciler) Cancel(ctx context.Context, orderID uint) error {
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}

	switch order.Status {
	case models.OrderCancelled:
		return nil
	case models.OrderPending:
	default:
		return fmt.Errorf("%w: заказ %d уже %s, отмена только через поддержку", ErrConflict, order.ID, order.Status)
	}

	if order.PaymentID != nil {
		if err := r.gateway.CancelPayment(ctx, *order.PaymentID); err != nil {
			r.log.Warn("не удалось отменить платёж в шлюзе",
				"order_id", order.ID, "payment_id", *order.PaymentID, "error", err)
		}
	}

	updated, err := r.orders.UpdateStatus(ctx, order.ID, models.OrderCancelled)
	if errors.Is(err, ErrConflict) {
		// заказ успел оплатиться, отмену не применяем
		return fmt.Errorf("%w: заказ %d уже оплачен", ErrConflict, order.ID)
	}
	if err != nil {
		return err
	}

	if r.events != nil {
		r.events.OrderStatusChanged(ctx, updated)
	}
	return nil
}

// Refund оформляет возврат по оплаченному заказу. Вызывается только
// из админских сценариев.
func (r *Reconciler) Refund(ctx context.Context, orderID uint) error {
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderPaid {
		return fmt.Errorf("%w: возврат возможен только по оплаченному заказу", ErrConflict)
	}
	if order.PaymentID == nil {
		return ErrNoPayment
	}

	refundID, err := r.gateway.Refund(ctx, *order.PaymentID, order.Amount)
	if err != nil {
		return err
	}

	updated, err := r.orders.UpdateStatus(ctx, order.ID, models.OrderRefunded)
	if err != nil {
		return err
	}

	if r.events != nil {
		r.events.OrderStatusChanged(ctx, updated)
	}

	r.log.Info("возврат оформлен", "order_id", order.ID, "refund_id", refundID)
	return nil
}
