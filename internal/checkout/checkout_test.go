package checkout

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wifiobd/shopbot/internal/cart"
	"github.com/wifiobd/shopbot/internal/catalog"
	"github.com/wifiobd/shopbot/internal/models"
)

type fakeCart struct {
	view *cart.View
}

func (f *fakeCart) Get(context.Context, int64) (*cart.View, error) {
	return f.view, nil
}

type fakeUsers struct {
	users  map[int64]*models.User
	phones map[int64]string
	emails map[int64]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users:  make(map[int64]*models.User),
		phones: make(map[int64]string),
		emails: make(map[int64]string),
	}
}

func (f *fakeUsers) Get(_ context.Context, id int64) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeUsers) UpdatePhone(_ context.Context, id int64, phone string) error {
	f.phones[id] = phone
	return nil
}

func (f *fakeUsers) UpdateEmail(_ context.Context, id int64, email string) error {
	f.emails[id] = email
	return nil
}

func filledView() *cart.View {
	price := decimal.RequireFromString("500.00")
	return &cart.View{
		Items: []cart.ViewItem{{
			Product:  catalog.Product{ID: 1, Name: "ELM327", Price: price, Quantity: 10},
			Quantity: 2,
			Subtotal: price.Mul(decimal.NewFromInt(2)),
		}},
		Total: price.Mul(decimal.NewFromInt(2)),
	}
}

func newTestDialogue(t *testing.T, view *cart.View) (*Dialogue, *fakeUsers) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	users := newFakeUsers()
	sessions := NewSessionStore(rdb, 30*time.Minute)
	d := NewDialogue(sessions, &fakeCart{view: view}, users, slog.Default())
	return d, users
}

func TestStartRejectsEmptyCart(t *testing.T) {
	d, _ := newTestDialogue(t, &cart.View{Total: decimal.Zero})
	ctx := context.Background()

	_, _, err := d.Start(ctx, 100)
	require.ErrorIs(t, err, ErrEmptyCart)

	sess, err := d.Session(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, StateIdle, sess.State)
}

func TestStartPrefillsFromProfile(t *testing.T) {
	d, users := newTestDialogue(t, filledView())
	ctx := context.Background()

	users.users[100] = &models.User{ID: 100, FirstName: "Иван", Phone: "+79161234567"}

	sess, view, err := d.Start(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, StateCollectingName, sess.State)
	require.Equal(t, "Иван", sess.Draft.Name)
	require.Equal(t, "+79161234567", sess.Draft.Phone)
	require.False(t, view.Empty())
}

func TestPhoneValidation(t *testing.T) {
	d, users := newTestDialogue(t, filledView())
	ctx := context.Background()

	_, _, err := d.Start(ctx, 100)
	require.NoError(t, err)
	_, err = d.SubmitName(ctx, 100, "Иван")
	require.NoError(t, err)

	// 9 цифр — отказ, состояние не продвигается
	sess, err := d.SubmitPhone(ctx, 100, "916123456")
	require.ErrorIs(t, err, ErrInvalidPhone)
	sess, err = d.Session(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, StateCollectingPhone, sess.State)

	// корректный номер продвигает и нормализуется
	sess, err = d.SubmitPhone(ctx, 100, "89161234567")
	require.NoError(t, err)
	require.Equal(t, StateCollectingEmail, sess.State)
	require.Equal(t, "+79161234567", sess.Draft.Phone)
	require.Equal(t, "+79161234567", users.phones[100])
}

func TestFullFlowToConfirm(t *testing.T) {
	d, _ := newTestDialogue(t, filledView())
	ctx := context.Background()

	_, _, err := d.Start(ctx, 100)
	require.NoError(t, err)

	_, err = d.SubmitName(ctx, 100, "Иван")
	require.NoError(t, err)
	_, err = d.SubmitPhone(ctx, 100, "+79161234567")
	require.NoError(t, err)
	_, err = d.SkipEmail(ctx, 100)
	require.NoError(t, err)

	// слишком короткий адрес отклоняется
	_, err = d.SubmitAddress(ctx, 100, "Москва")
	require.ErrorIs(t, err, ErrInvalidAddress)

	sess, err := d.SubmitAddress(ctx, 100, "119991, Москва, ул. Ленина, д. 1, кв. 2")
	require.NoError(t, err)
	require.Equal(t, StateConfirming, sess.State)

	draft, view, err := d.Confirm(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, "Иван", draft.Name)
	require.False(t, draft.Pickup)
	require.True(t, view.Total.Equal(decimal.RequireFromString("1000.00")))

	// диалог завершён
	sess, err = d.Session(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, StateIdle, sess.State)
}

func TestPickup(t *testing.T) {
	d, _ := newTestDialogue(t, filledView())
	ctx := context.Background()

	_, _, err := d.Start(ctx, 100)
	require.NoError(t, err)
	_, err = d.SubmitName(ctx, 100, "Иван")
	require.NoError(t, err)
	_, err = d.SubmitPhone(ctx, 100, "+79161234567")
	require.NoError(t, err)
	_, err = d.SkipEmail(ctx, 100)
	require.NoError(t, err)

	sess, err := d.ChoosePickup(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, StateConfirming, sess.State)
	require.True(t, sess.Draft.Pickup)
	require.Equal(t, PickupAddress, sess.Draft.Address)
}

func TestEditKeepsDraft(t *testing.T) {
	d, _ := newTestDialogue(t, filledView())
	ctx := context.Background()

	_, _, err := d.Start(ctx, 100)
	require.NoError(t, err)
	_, err = d.SubmitName(ctx, 100, "Иван")
	require.NoError(t, err)
	_, err = d.SubmitPhone(ctx, 100, "+79161234567")
	require.NoError(t, err)
	_, err = d.SkipEmail(ctx, 100)
	require.NoError(t, err)
	_, err = d.ChoosePickup(ctx, 100)
	require.NoError(t, err)

	sess, err := d.Edit(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, StateCollectingName, sess.State)
	require.Equal(t, "Иван", sess.Draft.Name)
	require.Equal(t, "+79161234567", sess.Draft.Phone)

	// пустой ввод оставляет имя из черновика
	sess, err = d.SubmitName(ctx, 100, "")
	require.NoError(t, err)
	require.Equal(t, "Иван", sess.Draft.Name)
}

func TestCancelLeavesCartUntouched(t *testing.T) {
	view := filledView()
	d, _ := newTestDialogue(t, view)
	ctx := context.Background()

	_, _, err := d.Start(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, d.Cancel(ctx, 100))

	sess, err := d.Session(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, StateIdle, sess.State)
	require.False(t, view.Empty())
}

func TestRestartResetsDialogue(t *testing.T) {
	d, _ := newTestDialogue(t, filledView())
	ctx := context.Background()

	_, _, err := d.Start(ctx, 100)
	require.NoError(t, err)
	_, err = d.SubmitName(ctx, 100, "Иван")
	require.NoError(t, err)

	// повторный старт перезапускает диалог с первого шага
	sess, _, err := d.Start(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, StateCollectingName, sess.State)
}

func TestConfirmOutOfOrder(t *testing.T) {
	d, _ := newTestDialogue(t, filledView())
	ctx := context.Background()

	_, _, err := d.Confirm(ctx, 100)
	require.ErrorIs(t, err, ErrBadState)
}
