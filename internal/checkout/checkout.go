// Package checkout ведёт пошаговый диалог оформления заказа:
// имя → телефон → email → адрес → подтверждение.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wifiobd/shopbot/internal/cart"
	"github.com/wifiobd/shopbot/internal/models"
)

var (
	ErrEmptyCart      = errors.New("checkout: cart is empty")
	ErrBadState       = errors.New("checkout: unexpected dialogue state")
	ErrInvalidName    = errors.New("checkout: name too short")
	ErrInvalidEmail   = errors.New("checkout: invalid email")
	ErrInvalidAddress = errors.New("checkout: address too short")
)

// PickupAddress — маркер самовывоза в черновике и заказе.
const PickupAddress = "Самовывоз"

type Cart interface {
	Get(ctx context.Context, userID int64) (*cart.View, error)
}

type Users interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	UpdatePhone(ctx context.Context, id int64, phone string) error
	UpdateEmail(ctx context.Context, id int64, email string) error
}

// Dialogue — конечный автомат оформления. Всё состояние живёт в
// SessionStore, поэтому сам Dialogue не держит ничего между вызовами
// и безопасен при нескольких воркерах.
type Dialogue struct {
	sessions *SessionStore
	cart     Cart
	users    Users
	log      *slog.Logger
}

func NewDialogue(sessions *SessionStore, c Cart, u Users, log *slog.Logger) *Dialogue {
	return &Dialogue{sessions: sessions, cart: c, users: u, log: log}
}

func (d *Dialogue) Session(ctx context.Context, userID int64) (*Session, error) {
	return d.sessions.Get(ctx, userID)
}

// Start начинает оформление. Пустая или нерезолвящаяся корзина
// отклоняется, пользователь остаётся в Idle. Повторный Start при
// активном диалоге перезапускает его заново.
func (d *Dialogue) Start(ctx context.Context, userID int64) (*Session, *cart.View, error) {
	view, err := d.cart.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if view.Empty() {
		return nil, nil, ErrEmptyCart
	}

	sess := &Session{State: StateCollectingName}

	// подставляем данные профиля как значения по умолчанию
	if u, err := d.users.Get(ctx, userID); err == nil {
		sess.Draft.Name = u.FirstName
		sess.Draft.Phone = u.Phone
		sess.Draft.Email = u.Email
	}

	if err := d.sessions.Put(ctx, userID, sess); err != nil {
		return nil, nil, err
	}
	return sess, view, nil
}

// SubmitName принимает имя. Пустой ввод при наличии значения по
// умолчанию означает «оставить как есть».
func (d *Dialogue) SubmitName(ctx context.Context, userID int64, name string) (*Session, error) {
	sess, err := d.require(ctx, userID, StateCollectingName)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" && sess.Draft.Name != "" {
		name = sess.Draft.Name
	}
	if len([]rune(name)) < 2 {
		return sess, ErrInvalidName
	}

	sess.Draft.Name = name
	sess.State = StateCollectingPhone
	return sess, d.sessions.Put(ctx, userID, sess)
}

// SubmitPhone проверяет и нормализует телефон, сохраняет его в профиль
// и переводит диалог к вводу email.
func (d *Dialogue) SubmitPhone(ctx context.Context, userID int64, raw string) (*Session, error) {
	sess, err := d.require(ctx, userID, StateCollectingPhone)
	if err != nil {
		return nil, err
	}

	phone, err := NormalizePhone(raw)
	if err != nil {
		return sess, err
	}

	sess.Draft.Phone = phone
	sess.State = StateCollectingEmail
	if err := d.sessions.Put(ctx, userID, sess); err != nil {
		return nil, err
	}

	if err := d.users.UpdatePhone(ctx, userID, phone); err != nil {
		d.log.Warn("не удалось сохранить телефон в профиль", "user_id", userID, "error", err)
	}
	return sess, nil
}

func (d *Dialogue) SubmitEmail(ctx context.Context, userID int64, email string) (*Session, error) {
	sess, err := d.require(ctx, userID, StateCollectingEmail)
	if err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return sess, ErrInvalidEmail
	}

	sess.Draft.Email = email
	sess.State = StateCollectingAddress
	if err := d.sessions.Put(ctx, userID, sess); err != nil {
		return nil, err
	}

	if err := d.users.UpdateEmail(ctx, userID, email); err != nil {
		d.log.Warn("не удалось сохранить email в профиль", "user_id", userID, "error", err)
	}
	return sess, nil
}

// SkipEmail пропускает необязательный email.
func (d *Dialogue) SkipEmail(ctx context.Context, userID int64) (*Session, error) {
	sess, err := d.require(ctx, userID, StateCollectingEmail)
	if err != nil {
		return nil, err
	}
	sess.Draft.Email = ""
	sess.State = StateCollectingAddress
	return sess, d.sessions.Put(ctx, userID, sess)
}

func (d *Dialogue) SubmitAddress(ctx context.Context, userID int64, address string) (*Session, error) {
	sess, err := d.require(ctx, userID, StateCollectingAddress)
	if err != nil {
		return nil, err
	}

	address = strings.TrimSpace(address)
	if len([]rune(address)) < 10 {
		return sess, ErrInvalidAddress
	}

	sess.Draft.Address = address
	sess.Draft.Pickup = false
	sess.State = StateConfirming
	return sess, d.sessions.Put(ctx, userID, sess)
}

// ChoosePickup выбирает самовывоз вместо адреса доставки.
func (d *Dialogue) ChoosePickup(ctx context.Context, userID int64) (*Session, error) {
	sess, err := d.require(ctx, userID, StateCollectingAddress)
	if err != nil {
		return nil, err
	}
	sess.Draft.Address = PickupAddress
	sess.Draft.Pickup = true
	sess.State = StateConfirming
	return sess, d.sessions.Put(ctx, userID, sess)
}

// Edit возвращает диалог с подтверждения на первый шаг, сохраняя
// черновик: данные не теряются, шаги просто проходятся заново.
func (d *Dialogue) Edit(ctx context.Context, userID int64) (*Session, error) {
	sess, err := d.require(ctx, userID, StateConfirming)
	if err != nil {
		return nil, err
	}
	sess.State = StateCollectingName
	return sess, d.sessions.Put(ctx, userID, sess)
}

// Confirm завершает диалог: возвращает замороженный черновик и
// актуальный снимок корзины, очищая состояние диалога. Корзину не
// трогает — её очистит подтверждение оплаты.
func (d *Dialogue) Confirm(ctx context.Context, userID int64) (Draft, *cart.View, error) {
	sess, err := d.require(ctx, userID, StateConfirming)
	if err != nil {
		return Draft{}, nil, err
	}

	view, err := d.cart.Get(ctx, userID)
	if err != nil {
		return Draft{}, nil, err
	}
	if view.Empty() {
		return Draft{}, nil, ErrEmptyCart
	}

	draft := sess.Draft
	if err := d.sessions.Clear(ctx, userID); err != nil {
		return Draft{}, nil, err
	}
	return draft, view, nil
}

// Cancel прерывает диалог из любого состояния. Корзина не трогается.
func (d *Dialogue) Cancel(ctx context.Context, userID int64) error {
	return d.sessions.Clear(ctx, userID)
}

func (d *Dialogue) require(ctx context.Context, userID int64, want State) (*Session, error) {
	sess, err := d.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess.State != want {
		return sess, fmt.Errorf("%w: %s, ожидалось %s", ErrBadState, sess.State, want)
	}
	return sess, nil
}
