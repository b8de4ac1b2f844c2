// Package bot — Telegram-интерфейс магазина: каталог, корзина,
// оформление и оплата заказа, поддержка и админские команды.
package bot

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wifiobd/shopbot/internal/cart"
	"github.com/wifiobd/shopbot/internal/catalog"
	"github.com/wifiobd/shopbot/internal/checkout"
	"github.com/wifiobd/shopbot/internal/notify"
	"github.com/wifiobd/shopbot/internal/order"
	"github.com/wifiobd/shopbot/internal/support"
	"github.com/wifiobd/shopbot/internal/user"
)

// Deps — зависимости бота. Events может быть nil.
type Deps struct {
	Catalog    *catalog.Reader
	Cart       *cart.Store
	Dialogue   *checkout.Dialogue
	Users      *user.Service
	Orders     *order.Service
	Reconciler *order.Reconciler
	Support    *support.Service
	Events     *notify.Producer
}

type Bot struct {
	api      *tgbotapi.BotAPI
	deps     Deps
	adminIDs map[int64]bool
	log      *slog.Logger

	mu    sync.Mutex
	modes map[int64]inputMode
}

// inputMode — ожидание следующего текстового сообщения вне диалога
// оформления: текст обращения в поддержку, ответ админа на тикет.
type inputMode struct {
	kind     string
	ticketID uint
}

const (
	modeSupport     = "support"
	modeAdminAnswer = "admin_answer"
)

func New(token string, deps Deps, adminIDs []int64, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}

	return &Bot{
		api:      api,
		deps:     deps,
		adminIDs: admins,
		log:      log,
		modes:    make(map[int64]inputMode),
	}, nil
}

// Run читает обновления long polling до отмены контекста. Каждое
// обновление обрабатывается в своей горутине: состояние диалогов живёт
// в redis, поэтому параллельная обработка безопасна.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("бот запущен", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("паника при обработке обновления", "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.adminIDs[userID]
}

func (b *Bot) setMode(userID int64, mode inputMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modes[userID] = mode
}

func (b *Bot) takeMode(userID int64) (inputMode, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mode, ok := b.modes[userID]
	if ok {
		delete(b.modes, userID)
	}
	return mode, ok
}

func (b *Bot) clearMode(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.modes, userID)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Warn("не удалось отправить сообщение", "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	b.send(msg)
}

func (b *Bot) replyKB(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = kb
	b.send(msg)
}

// Notify отправляет пользователю произвольное уведомление. Используется
// из админских сценариев (ответ поддержки, смена статуса заказа).
func (b *Bot) Notify(userID int64, text string) {
	b.reply(userID, text)
}
