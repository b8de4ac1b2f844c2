package bot

import (
	"context"
	"errors"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wifiobd/shopbot/internal/checkout"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.Chat.ID

	if msg.From != nil {
		if _, err := b.deps.Users.GetOrCreate(ctx, userID, msg.From.UserName, msg.From.FirstName, msg.From.LastName); err != nil {
			b.log.Error("не удалось сохранить пользователя", "user_id", userID, "error", err)
		}
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// активный диалог оформления перехватывает любой текст
	sess, err := b.deps.Dialogue.Session(ctx, userID)
	if err == nil && sess.State != checkout.StateIdle {
		b.handleCheckoutInput(ctx, userID, sess, msg.Text)
		return
	}

	if mode, ok := b.takeMode(userID); ok {
		b.handleModeInput(ctx, userID, mode, msg.Text)
		return
	}

	// свободный текст — поиск по каталогу
	b.handleSearch(ctx, userID, msg.Text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.clearMode(userID)
		name := "друг"
		if msg.From != nil && msg.From.FirstName != "" {
			name = msg.From.FirstName
		}
		text := fmt.Sprintf("Привет, %s! 👋\n\nЭто магазин автосканеров wifiobd.ru. Выбирайте товары в каталоге, оплата — картой через ЮKassa.", html.EscapeString(name))
		b.replyKB(userID, text, mainMenuKeyboard(b.isAdmin(userID)))
	case "catalog":
		b.showCategories(ctx, userID)
	case "cart":
		b.showCart(ctx, userID)
	case "orders":
		b.showOrders(ctx, userID)
	case "support":
		b.startSupport(userID)
	case "cancel":
		b.clearMode(userID)
		if err := b.deps.Dialogue.Cancel(ctx, userID); err != nil {
			b.log.Warn("не удалось отменить диалог", "user_id", userID, "error", err)
		}
		b.replyKB(userID, "Действие отменено.", mainMenuKeyboard(b.isAdmin(userID)))
	case "admin":
		if !b.isAdmin(userID) {
			b.reply(userID, "Команда недоступна.")
			return
		}
		b.showAdminPanel(ctx, userID)
	default:
		b.reply(userID, "Неизвестная команда. Нажмите /start.")
	}
}

func (b *Bot) handleSearch(ctx context.Context, userID int64, query string) {
	if query == "" {
		b.replyKB(userID, "Напишите название товара для поиска или откройте каталог.", mainMenuKeyboard(b.isAdmin(userID)))
		return
	}

	products, err := b.deps.Catalog.SearchProducts(ctx, query, 10)
	if err != nil {
		b.log.Error("ошибка поиска", "query", query, "error", err)
		b.reply(userID, "Поиск временно недоступен, попробуйте позже.")
		return
	}
	if len(products) == 0 {
		b.replyKB(userID, fmt.Sprintf("По запросу «%s» ничего не найдено.", html.EscapeString(query)), mainMenuKeyboard(b.isAdmin(userID)))
		return
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(products))
	for _, p := range products {
		label := fmt.Sprintf("%s — %s", p.Name, formatPrice(p.Price))
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("prod:%d", p.ID)),
		})
	}
	b.replyKB(userID, "Вот что нашлось:", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleCheckoutInput продвигает диалог оформления по текстовому вводу.
func (b *Bot) handleCheckoutInput(ctx context.Context, userID int64, sess *checkout.Session, text string) {
	switch sess.State {
	case checkout.StateCollectingName:
		// «-» означает «оставить имя из профиля», пустое сообщение
		// Telegram не отправит
		if text == "-" {
			text = ""
		}
		next, err := b.deps.Dialogue.SubmitName(ctx, userID, text)
		if errors.Is(err, checkout.ErrInvalidName) {
			b.reply(userID, "Имя слишком короткое, попробуйте ещё раз.")
			return
		}
		if err != nil {
			b.checkoutError(userID, err)
			return
		}
		b.askPhone(userID, next.Draft.Phone)
	case checkout.StateCollectingPhone:
		next, err := b.deps.Dialogue.SubmitPhone(ctx, userID, text)
		if errors.Is(err, checkout.ErrInvalidPhone) {
			b.reply(userID, "Не похоже на номер телефона. Введите в формате +79XXXXXXXXX.")
			return
		}
		if err != nil {
			b.checkoutError(userID, err)
			return
		}
		b.askEmail(userID, next.Draft.Email)
	case checkout.StateCollectingEmail:
		_, err := b.deps.Dialogue.SubmitEmail(ctx, userID, text)
		if errors.Is(err, checkout.ErrInvalidEmail) {
			b.reply(userID, "Некорректный email. Введите ещё раз или нажмите «Пропустить».")
			return
		}
		if err != nil {
			b.checkoutError(userID, err)
			return
		}
		b.askAddress(userID)
	case checkout.StateCollectingAddress:
		next, err := b.deps.Dialogue.SubmitAddress(ctx, userID, text)
		if errors.Is(err, checkout.ErrInvalidAddress) {
			b.reply(userID, "Адрес слишком короткий. Укажите индекс, город, улицу, дом и квартиру.")
			return
		}
		if err != nil {
			b.checkoutError(userID, err)
			return
		}
		b.showConfirmation(ctx, userID, next)
	case checkout.StateConfirming:
		b.reply(userID, "Проверьте заказ и нажмите «Подтвердить» или «Изменить».")
	}
}

func (b *Bot) handleModeInput(ctx context.Context, userID int64, mode inputMode, text string) {
	switch mode.kind {
	case modeSupport:
		b.submitSupportMessage(ctx, userID, text)
	case modeAdminAnswer:
		b.submitTicketAnswer(ctx, userID, mode.ticketID, text)
	}
}

func (b *Bot) checkoutError(userID int64, err error) {
	if errors.Is(err, checkout.ErrBadState) {
		b.reply(userID, "Диалог оформления сброшен. Откройте корзину и начните заново.")
		return
	}
	b.log.Error("ошибка оформления", "user_id", userID, "error", err)
	b.reply(userID, "Что-то пошло не так, попробуйте позже.")
}

func (b *Bot) askName(userID int64, current string) {
	text := "Как вас зовут?"
	if current != "" {
		text = fmt.Sprintf("Как вас зовут?\nОтправьте «-», чтобы оставить: <b>%s</b>", html.EscapeString(current))
	}
	b.replyKB(userID, text, cancelKeyboard())
}

func (b *Bot) askPhone(userID int64, current string) {
	text := "Введите номер телефона:"
	if current != "" {
		text = fmt.Sprintf("Введите номер телефона (сейчас: <b>%s</b>):", html.EscapeString(current))
	}
	b.replyKB(userID, text, cancelKeyboard())
}

func (b *Bot) askEmail(userID int64, current string) {
	text := "Введите email для чека (необязательно):"
	if current != "" {
		text = fmt.Sprintf("Введите email (сейчас: <b>%s</b>) или пропустите:", html.EscapeString(current))
	}
	b.replyKB(userID, text, emailKeyboard())
}

func (b *Bot) askAddress(userID int64) {
	b.replyKB(userID, "Введите адрес доставки или выберите самовывоз:", addressKeyboard())
}

func (b *Bot) showConfirmation(ctx context.Context, userID int64, sess *checkout.Session) {
	view, err := b.deps.Cart.Get(ctx, userID)
	if err != nil {
		b.checkoutError(userID, err)
		return
	}
	b.replyKB(userID, formatDraft(sess.Draft, view), confirmKeyboard())
}
