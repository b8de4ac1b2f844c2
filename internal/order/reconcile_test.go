package order

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wifiobd/shopbot/internal/models"
	"github.com/wifiobd/shopbot/internal/payment"
)

type fakeGateway struct {
	createErr  error
	status     payment.Status
	statusErr  error
	created    int
	cancelled  []string
	refunded   []string
	lastAmount decimal.Decimal
}

func (f *fakeGateway) CreatePayment(_ context.Context, amount decimal.Decimal, _ string, _ map[string]string) (*payment.Payment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	f.lastAmount = amount
	return &payment.Payment{
		ID:          fmt.Sprintf("pay-%d", f.created),
		Status:      payment.StatusPending,
		RedirectURL: "https://yookassa.ru/checkout",
	}, nil
}

func (f *fakeGateway) CheckStatus(context.Context, string) (payment.Status, error) {
	if f.statusErr != nil {
		return payment.StatusError, f.statusErr
	}
	return f.status, nil
}

func (f *fakeGateway) CancelPayment(_ context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeGateway) Refund(_ context.Context, id string, _ decimal.Decimal) (string, error) {
	f.refunded = append(f.refunded, id)
	return "refund-1", nil
}

type fakeClearer struct {
	cleared []int64
}

func (f *fakeClearer) Clear(_ context.Context, userID int64) error {
	f.cleared = append(f.cleared, userID)
	return nil
}

type fakeMirror struct {
	enqueued []uint
}

func (f *fakeMirror) Enqueue(orderID uint) {
	f.enqueued = append(f.enqueued, orderID)
}

type fixture struct {
	orders  *Service
	gateway *fakeGateway
	cart    *fakeClearer
	mirror  *fakeMirror
	rec     *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		orders:  newTestService(t),
		gateway: &fakeGateway{status: payment.StatusPending},
		cart:    &fakeClearer{},
		mirror:  &fakeMirror{},
	}
	f.rec = NewReconciler(f.orders, f.cart, f.gateway, f.mirror, nil, slog.Default())
	return f
}

func (f *fixture) newOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := f.orders.Create(context.Background(), 100, testSnapshot("500.00", 2), testDraft())
	require.NoError(t, err)
	return order
}

func TestStartPaymentAttachesReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	p, err := f.rec.StartPayment(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "pay-1", p.ID)
	require.NotEmpty(t, p.RedirectURL)
	require.True(t, f.gateway.lastAmount.Equal(decimal.RequireFromString("1000.00")))

	got, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "pay-1", *got.PaymentID)
	require.Equal(t, models.OrderPending, got.Status)
}

func TestStartPaymentRetryAfterGatewayFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	f.gateway.createErr = payment.ErrGateway
	_, err := f.rec.StartPayment(ctx, order.ID)
	require.ErrorIs(t, err, payment.ErrGateway)

	// заказ остался pending без ссылки на платёж
	got, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Nil(t, got.PaymentID)

	// повтор создаёт новый платёж для того же заказа
	f.gateway.createErr = nil
	p, err := f.rec.StartPayment(ctx, order.ID)
	require.NoError(t, err)

	got, err = f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, *got.PaymentID)
}

func TestStartPaymentRejectsPaidOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	_, err := f.orders.UpdateStatus(ctx, order.ID, models.OrderPaid)
	require.NoError(t, err)

	_, err = f.rec.StartPayment(ctx, order.ID)
	require.ErrorIs(t, err, ErrConflict)
}

func TestCheckPaymentCommitsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	_, err := f.rec.StartPayment(ctx, order.ID)
	require.NoError(t, err)

	// платёж ещё не прошёл
	status, err := f.rec.CheckPayment(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusPending, status)
	require.Empty(t, f.cart.cleared)

	f.gateway.status = payment.StatusSucceeded
	status, err = f.rec.CheckPayment(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusSucceeded, status)

	got, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderPaid, got.Status)
	require.NotNil(t, got.PaidAt)
	require.Equal(t, []int64{100}, f.cart.cleared)
	require.Equal(t, []uint{order.ID}, f.mirror.enqueued)

	// повторная проверка ничего не делает заново
	status, err = f.rec.CheckPayment(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusSucceeded, status)
	require.Len(t, f.cart.cleared, 1)
	require.Len(t, f.mirror.enqueued, 1)
}

func TestCheckPaymentWithoutReference(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t)

	_, err := f.rec.CheckPayment(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrNoPayment)
}

func TestCancelPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	_, err := f.rec.StartPayment(ctx, order.ID)
	require.NoError(t, err)

	require.NoError(t, f.rec.Cancel(ctx, order.ID))
	require.Equal(t, []string{"pay-1"}, f.gateway.cancelled)

	got, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderCancelled, got.Status)

	// повторная отмена — no-op
	require.NoError(t, f.rec.Cancel(ctx, order.ID))
}

func TestCancelPaidOrderRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	_, err := f.orders.UpdateStatus(ctx, order.ID, models.OrderPaid)
	require.NoError(t, err)

	err = f.rec.Cancel(ctx, order.ID)
	require.ErrorIs(t, err, ErrConflict)

	got, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderPaid, got.Status)
}

func TestRefundPaidOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	_, err := f.rec.StartPayment(ctx, order.ID)
	require.NoError(t, err)
	f.gateway.status = payment.StatusSucceeded
	_, err = f.rec.CheckPayment(ctx, order.ID)
	require.NoError(t, err)

	require.NoError(t, f.rec.Refund(ctx, order.ID))
	require.Equal(t, []string{"pay-1"}, f.gateway.refunded)

	got, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderRefunded, got.Status)

	// возврат по неоплаченному заказу невозможен
	other := f.newOrder(t)
	require.ErrorIs(t, f.rec.Refund(ctx, other.ID), ErrConflict)
}
