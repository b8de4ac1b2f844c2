package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wifiobd/shopbot/internal/catalog"
	"github.com/wifiobd/shopbot/internal/checkout"
	"github.com/wifiobd/shopbot/internal/order"
	"github.com/wifiobd/shopbot/internal/payment"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Telegram ждёт ответ на каждый callback, иначе у пользователя
	// крутится спиннер
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			b.log.Warn("не удалось ответить на callback", "error", err)
		}
	}()

	userID := cb.From.ID
	data := cb.Data

	switch {
	case data == "menu":
		b.replyKB(userID, "Главное меню:", mainMenuKeyboard(b.isAdmin(userID)))
	case data == "cats":
		b.showCategories(ctx, userID)
	case strings.HasPrefix(data, "cat:"):
		b.showCategoryPage(ctx, userID, data)
	case strings.HasPrefix(data, "prod:"):
		b.showProduct(ctx, userID, data)
	case strings.HasPrefix(data, "add:"):
		b.addToCart(ctx, userID, data)
	case data == "cart":
		b.showCart(ctx, userID)
	case strings.HasPrefix(data, "del:"):
		b.removeFromCart(ctx, userID, data)
	case data == "clear":
		b.clearCart(ctx, userID)
	case data == "checkout":
		b.startCheckout(ctx, userID)
	case strings.HasPrefix(data, "co:"):
		b.handleCheckoutAction(ctx, userID, strings.TrimPrefix(data, "co:"))
	case strings.HasPrefix(data, "pay:"):
		b.startPayment(ctx, userID, data)
	case strings.HasPrefix(data, "paycheck:"):
		b.checkPayment(ctx, userID, data)
	case strings.HasPrefix(data, "ordcancel:"):
		b.cancelOrder(ctx, userID, data)
	case data == "orders":
		b.showOrders(ctx, userID)
	case data == "support":
		b.startSupport(userID)
	case data == "adm" || strings.HasPrefix(data, "adm:"):
		b.handleAdminCallback(ctx, userID, data)
	}
}

func parseID(data string) (int64, error) {
	parts := strings.Split(data, ":")
	return strconv.ParseInt(parts[len(parts)-1], 10, 64)
}

func (b *Bot) showCategories(ctx context.Context, userID int64) {
	categories, err := b.deps.Catalog.GetCategories(ctx, 0)
	if err != nil {
		b.log.Error("ошибка загрузки категорий", "error", err)
		b.reply(userID, "Каталог временно недоступен.")
		return
	}
	if len(categories) == 0 {
		b.reply(userID, "Каталог пуст.")
		return
	}
	b.replyKB(userID, "Выберите категорию:", categoriesKeyboard(categories))
}

func (b *Bot) showCategoryPage(ctx context.Context, userID int64, data string) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 {
		return
	}
	categoryID, err1 := strconv.ParseInt(parts[1], 10, 64)
	offset, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return
	}

	// у категории могут быть подкатегории вместо товаров
	if offset == 0 {
		if sub, err := b.deps.Catalog.GetCategories(ctx, categoryID); err == nil && len(sub) > 0 {
			b.replyKB(userID, "Выберите подкатегорию:", categoriesKeyboard(sub))
			return
		}
	}

	products, err := b.deps.Catalog.GetProducts(ctx, categoryID, productsPerPage, offset)
	if err != nil {
		b.log.Error("ошибка загрузки товаров", "category_id", categoryID, "error", err)
		b.reply(userID, "Каталог временно недоступен.")
		return
	}
	if len(products) == 0 && offset == 0 {
		b.reply(userID, "В этой категории пока нет товаров.")
		return
	}

	total, err := b.deps.Catalog.CountProducts(ctx, categoryID)
	if err != nil {
		total = int64(offset + len(products))
	}

	title := "Товары:"
	if category, err := b.deps.Catalog.GetCategory(ctx, categoryID); err == nil {
		title = fmt.Sprintf("<b>%s</b> (%d):", category.Name, total)
	}
	b.replyKB(userID, title, productsKeyboard(categoryID, products, offset, total))
}

func (b *Bot) showProduct(ctx context.Context, userID int64, data string) {
	productID, err := parseID(data)
	if err != nil {
		return
	}

	product, err := b.deps.Catalog.GetProduct(ctx, productID)
	if catalog.IsNotFound(err) {
		b.reply(userID, "Товар больше не продаётся.")
		return
	}
	if err != nil {
		b.log.Error("ошибка загрузки товара", "product_id", productID, "error", err)
		b.reply(userID, "Не удалось загрузить товар.")
		return
	}

	b.replyKB(userID, formatProduct(product), productKeyboard(product))
}

func (b *Bot) addToCart(ctx context.Context, userID int64, data string) {
	productID, err := parseID(data)
	if err != nil {
		return
	}

	if err := b.deps.Cart.Add(ctx, userID, productID, 1, nil); err != nil {
		b.log.Error("ошибка добавления в корзину", "user_id", userID, "product_id", productID, "error", err)
		b.reply(userID, "Не удалось добавить товар, попробуйте позже.")
		return
	}

	count, _ := b.deps.Cart.Count(ctx, userID)
	b.reply(userID, fmt.Sprintf("Добавлено ✅ В корзине позиций: %d", count))
}

func (b *Bot) showCart(ctx context.Context, userID int64) {
	view, err := b.deps.Cart.Get(ctx, userID)
	if err != nil {
		b.log.Error("ошибка загрузки корзины", "user_id", userID, "error", err)
		b.reply(userID, "Не удалось загрузить корзину.")
		return
	}
	if view.Empty() {
		b.replyKB(userID, "Корзина пуста. Загляните в каталог 🛍", mainMenuKeyboard(b.isAdmin(userID)))
		return
	}
	b.replyKB(userID, formatCart(view), cartKeyboard(view.Items))
}

func (b *Bot) removeFromCart(ctx context.Context, userID int64, data string) {
	productID, err := parseID(data)
	if err != nil {
		return
	}
	if err := b.deps.Cart.Remove(ctx, userID, productID); err != nil {
		b.log.Error("ошибка удаления из корзины", "user_id", userID, "error", err)
	}
	b.showCart(ctx, userID)
}

func (b *Bot) clearCart(ctx context.Context, userID int64) {
	if err := b.deps.Cart.Clear(ctx, userID); err != nil {
		b.log.Error("ошибка очистки корзины", "user_id", userID, "error", err)
		b.reply(userID, "Не удалось очистить корзину.")
		return
	}
	b.replyKB(userID, "Корзина очищена.", mainMenuKeyboard(b.isAdmin(userID)))
}

func (b *Bot) startCheckout(ctx context.Context, userID int64) {
	sess, _, err := b.deps.Dialogue.Start(ctx, userID)
	if errors.Is(err, checkout.ErrEmptyCart) {
		b.reply(userID, "Корзина пуста, оформлять нечего.")
		return
	}
	if err != nil {
		b.checkoutError(userID, err)
		return
	}
	b.askName(userID, sess.Draft.Name)
}

func (b *Bot) handleCheckoutAction(ctx context.Context, userID int64, action string) {
	switch action {
	case "skipmail":
		if _, err := b.deps.Dialogue.SkipEmail(ctx, userID); err != nil {
			b.checkoutError(userID, err)
			return
		}
		b.askAddress(userID)
	case "pickup":
		sess, err := b.deps.Dialogue.ChoosePickup(ctx, userID)
		if err != nil {
			b.checkoutError(userID, err)
			return
		}
		b.showConfirmation(ctx, userID, sess)
	case "edit":
		sess, err := b.deps.Dialogue.Edit(ctx, userID)
		if err != nil {
			b.checkoutError(userID, err)
			return
		}
		b.askName(userID, sess.Draft.Name)
	case "confirm":
		b.confirmCheckout(ctx, userID)
	case "cancel":
		if err := b.deps.Dialogue.Cancel(ctx, userID); err != nil {
			b.log.Warn("не удалось отменить диалог", "user_id", userID, "error", err)
		}
		b.replyKB(userID, "Оформление отменено, корзина сохранена.", mainMenuKeyboard(b.isAdmin(userID)))
	}
}

// confirmCheckout фиксирует заказ и сразу создаёт платёж.
func (b *Bot) confirmCheckout(ctx context.Context, userID int64) {
	draft, view, err := b.deps.Dialogue.Confirm(ctx, userID)
	if errors.Is(err, checkout.ErrEmptyCart) {
		b.reply(userID, "Корзина опустела, заказ не создан.")
		return
	}
	if err != nil {
		b.checkoutError(userID, err)
		return
	}

	ord, err := b.deps.Orders.Create(ctx, userID, view, draft)
	if err != nil {
		b.log.Error("не удалось создать заказ", "user_id", userID, "error", err)
		b.reply(userID, "Не удалось создать заказ, попробуйте позже. Корзина сохранена.")
		return
	}

	b.sendPaymentLink(ctx, userID, ord.ID)
}

// userOrder резолвит номер заказа из callback-данных и проверяет его
// принадлежность. Callback-данные приходят от клиента, подделать в них
// чужой номер тривиально, поэтому чужой заказ отвечает как отсутствующий.
func (b *Bot) userOrder(ctx context.Context, userID int64, data string) (uint, bool) {
	orderID, err := parseID(data)
	if err != nil {
		return 0, false
	}
	if _, err := b.deps.Orders.GetForUser(ctx, uint(orderID), userID); err != nil {
		if !errors.Is(err, order.ErrNotFound) {
			b.log.Error("ошибка загрузки заказа", "order_id", orderID, "user_id", userID, "error", err)
		}
		b.reply(userID, "Заказ не найден.")
		return 0, false
	}
	return uint(orderID), true
}

func (b *Bot) startPayment(ctx context.Context, userID int64, data string) {
	orderID, ok := b.userOrder(ctx, userID, data)
	if !ok {
		return
	}
	b.sendPaymentLink(ctx, userID, orderID)
}

func (b *Bot) sendPaymentLink(ctx context.Context, userID int64, orderID uint) {
	p, err := b.deps.Reconciler.StartPayment(ctx, orderID)
	if errors.Is(err, order.ErrConflict) {
		b.reply(userID, "Этот заказ уже нельзя оплатить.")
		return
	}
	if err != nil {
		b.log.Error("не удалось создать платёж", "order_id", orderID, "error", err)
		b.replyKB(userID, fmt.Sprintf("Платёжный сервис недоступен. Заказ №%d сохранён, попробуйте оплатить позже.", orderID),
			paymentRetryKeyboard(orderID))
		return
	}

	text := fmt.Sprintf("Заказ №%d создан!\n\nПерейдите по ссылке для оплаты, затем нажмите «Я оплатил».", orderID)
	b.replyKB(userID, text, paymentKeyboard(orderID, p.RedirectURL))
}

func (b *Bot) checkPayment(ctx context.Context, userID int64, data string) {
	orderID, ok := b.userOrder(ctx, userID, data)
	if !ok {
		return
	}

	status, err := b.deps.Reconciler.CheckPayment(ctx, orderID)
	if errors.Is(err, order.ErrNoPayment) {
		b.reply(userID, "Платёж ещё не создан, нажмите «Оплатить».")
		return
	}
	if err != nil {
		b.log.Error("ошибка проверки платежа", "order_id", orderID, "error", err)
		b.reply(userID, "Не удалось проверить оплату, попробуйте через минуту.")
		return
	}

	switch status {
	case payment.StatusSucceeded:
		b.replyKB(userID, fmt.Sprintf("Оплата получена ✅\nЗаказ №%d передан в работу, мы свяжемся с вами.", orderID),
			mainMenuKeyboard(b.isAdmin(userID)))
	case payment.StatusPending:
		b.reply(userID, "Оплата ещё не поступила. Если вы уже заплатили, подождите минуту и проверьте снова.")
	case payment.StatusCancelled:
		b.reply(userID, "Платёж отменён. Можно создать новый через «Мои заказы».")
	default:
		b.reply(userID, "Статус платежа неизвестен, попробуйте позже.")
	}
}

func (b *Bot) cancelOrder(ctx context.Context, userID int64, data string) {
	orderID, ok := b.userOrder(ctx, userID, data)
	if !ok {
		return
	}

	if err := b.deps.Reconciler.Cancel(ctx, orderID); err != nil {
		if errors.Is(err, order.ErrConflict) {
			b.reply(userID, "Заказ уже оплачен, отмена только через поддержку.")
			return
		}
		b.log.Error("не удалось отменить заказ", "order_id", orderID, "error", err)
		b.reply(userID, "Не удалось отменить заказ.")
		return
	}
	b.replyKB(userID, fmt.Sprintf("Заказ №%d отменён.", orderID), mainMenuKeyboard(b.isAdmin(userID)))
}

func (b *Bot) showOrders(ctx context.Context, userID int64) {
	orders, err := b.deps.Orders.ByUser(ctx, userID, 10)
	if err != nil {
		b.log.Error("ошибка загрузки заказов", "user_id", userID, "error", err)
		b.reply(userID, "Не удалось загрузить заказы.")
		return
	}
	if len(orders) == 0 {
		b.replyKB(userID, "У вас пока нет заказов.", mainMenuKeyboard(b.isAdmin(userID)))
		return
	}

	for i := range orders {
		b.replyKB(userID, formatOrder(&orders[i]), orderKeyboard(&orders[i]))
	}
}

func (b *Bot) startSupport(userID int64) {
	b.setMode(userID, inputMode{kind: modeSupport})
	b.reply(userID, "Опишите ваш вопрос одним сообщением, мы ответим в этом чате.\n/cancel — отменить.")
}

func (b *Bot) submitSupportMessage(ctx context.Context, userID int64, text string) {
	ticket, err := b.deps.Support.Create(ctx, userID, text)
	if err != nil {
		b.log.Error("не удалось создать обращение", "user_id", userID, "error", err)
		b.reply(userID, "Не удалось отправить обращение, попробуйте позже.")
		return
	}

	if b.deps.Events != nil {
		b.deps.Events.TicketChanged(ctx, ticket)
	}

	b.replyKB(userID, fmt.Sprintf("Обращение №%d принято, ответим в ближайшее время.", ticket.ID),
		mainMenuKeyboard(b.isAdmin(userID)))

	// уведомляем админов о новом тикете
	for adminID := range b.adminIDs {
		b.replyKB(adminID, fmt.Sprintf("💬 Новое обращение №%d от пользователя %d:\n\n%s", ticket.ID, userID, text),
			adminTicketKeyboard(ticket.ID))
	}
}

func paymentRetryKeyboard(orderID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Повторить оплату", fmt.Sprintf("pay:%d", orderID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖ Отменить заказ", fmt.Sprintf("ordcancel:%d", orderID)),
		),
	)
}
