package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wifiobd/shopbot/internal/models"
	"github.com/wifiobd/shopbot/internal/order"
)

func (b *Bot) showAdminPanel(ctx context.Context, userID int64) {
	usersCount, _ := b.deps.Users.Count(ctx)
	ordersCount, _ := b.deps.Orders.Count(ctx)

	text := fmt.Sprintf("<b>Админка</b>\n\nПользователей: %d\nЗаказов: %d", usersCount, ordersCount)
	b.replyKB(userID, text, adminKeyboard())
}

func (b *Bot) handleAdminCallback(ctx context.Context, userID int64, data string) {
	if !b.isAdmin(userID) {
		return
	}

	switch {
	case data == "adm":
		b.showAdminPanel(ctx, userID)
	case data == "adm:pending":
		b.showPendingOrders(ctx, userID)
	case data == "adm:tickets":
		b.showOpenTickets(ctx, userID)
	case strings.HasPrefix(data, "adm:answer:"):
		b.startTicketAnswer(userID, data)
	case strings.HasPrefix(data, "adm:close:"):
		b.closeTicket(ctx, userID, data)
	case strings.HasPrefix(data, "adm:done:"):
		b.adminSetStatus(ctx, userID, data, models.OrderCompleted)
	case strings.HasPrefix(data, "adm:refund:"):
		b.adminRefund(ctx, userID, data)
	}
}

func (b *Bot) showPendingOrders(ctx context.Context, userID int64) {
	orders, err := b.deps.Orders.Recent(ctx, 20)
	if err != nil {
		b.log.Error("ошибка загрузки заказов", "error", err)
		b.reply(userID, "Не удалось загрузить заказы.")
		return
	}

	shown := 0
	for i := range orders {
		if orders[i].Status != models.OrderPaid && orders[i].Status != models.OrderPending {
			continue
		}
		shown++
		b.replyKB(userID, formatAdminOrder(&orders[i]), adminOrderKeyboard(&orders[i]))
	}
	if shown == 0 {
		b.reply(userID, "Заказов в работе нет.")
	}
}

func (b *Bot) showOpenTickets(ctx context.Context, userID int64) {
	tickets, err := b.deps.Support.Open(ctx, 20)
	if err != nil {
		b.log.Error("ошибка загрузки тикетов", "error", err)
		b.reply(userID, "Не удалось загрузить обращения.")
		return
	}
	if len(tickets) == 0 {
		b.reply(userID, "Открытых обращений нет.")
		return
	}

	for i := range tickets {
		t := &tickets[i]
		text := fmt.Sprintf("💬 <b>Обращение №%d</b> от пользователя %d\n%s\n\n%s",
			t.ID, t.UserID, t.CreatedAt.Format("02.01.2006 15:04"), html.EscapeString(t.Message))
		b.replyKB(userID, text, adminTicketKeyboard(t.ID))
	}
}

func (b *Bot) startTicketAnswer(userID int64, data string) {
	id, err := parseID(data)
	if err != nil {
		return
	}
	b.setMode(userID, inputMode{kind: modeAdminAnswer, ticketID: uint(id)})
	b.reply(userID, fmt.Sprintf("Введите ответ на обращение №%d:\n/cancel — отменить.", id))
}

func (b *Bot) submitTicketAnswer(ctx context.Context, adminID int64, ticketID uint, text string) {
	ticket, err := b.deps.Support.Answer(ctx, ticketID, text)
	if err != nil {
		b.log.Error("не удалось ответить на обращение", "ticket_id", ticketID, "error", err)
		b.reply(adminID, "Не удалось сохранить ответ.")
		return
	}

	if b.deps.Events != nil {
		b.deps.Events.TicketChanged(ctx, ticket)
	}

	b.Notify(ticket.UserID, fmt.Sprintf("💬 Ответ поддержки на обращение №%d:\n\n%s", ticket.ID, html.EscapeString(text)))
	b.reply(adminID, "Ответ отправлен пользователю ✅")
}

func (b *Bot) closeTicket(ctx context.Context, userID int64, data string) {
	id, err := parseID(data)
	if err != nil {
		return
	}
	if err := b.deps.Support.Close(ctx, uint(id)); err != nil {
		b.log.Error("не удалось закрыть обращение", "ticket_id", id, "error", err)
		b.reply(userID, "Не удалось закрыть обращение.")
		return
	}
	b.reply(userID, fmt.Sprintf("Обращение №%d закрыто.", id))
}

// adminSetStatus переводит заказ в указанный статус из админки.
func (b *Bot) adminSetStatus(ctx context.Context, adminID int64, data string, next models.OrderStatus) {
	id, err := parseID(data)
	if err != nil {
		return
	}

	updated, err := b.deps.Orders.UpdateStatus(ctx, uint(id), next)
	if errors.Is(err, order.ErrConflict) {
		b.reply(adminID, "Такой переход статуса недопустим.")
		return
	}
	if err != nil {
		b.log.Error("не удалось сменить статус", "order_id", id, "error", err)
		b.reply(adminID, "Не удалось сменить статус заказа.")
		return
	}

	if b.deps.Events != nil {
		b.deps.Events.OrderStatusChanged(ctx, updated)
	}
	b.Notify(updated.UserID, fmt.Sprintf("Заказ №%d: %s.", updated.ID, statusLabel(updated.Status)))
	b.reply(adminID, fmt.Sprintf("Заказ №%d → %s ✅", updated.ID, statusLabel(updated.Status)))
}

func (b *Bot) adminRefund(ctx context.Context, adminID int64, data string) {
	id, err := parseID(data)
	if err != nil {
		return
	}

	if err := b.deps.Reconciler.Refund(ctx, uint(id)); err != nil {
		if errors.Is(err, order.ErrConflict) {
			b.reply(adminID, "Возврат возможен только по оплаченному заказу.")
			return
		}
		b.log.Error("не удалось оформить возврат", "order_id", id, "error", err)
		b.reply(adminID, "Не удалось оформить возврат.")
		return
	}

	if ord, err := b.deps.Orders.Get(ctx, uint(id)); err == nil {
		b.Notify(ord.UserID, fmt.Sprintf("По заказу №%d оформлен возврат, деньги вернутся на карту в течение нескольких дней.", ord.ID))
	}
	b.reply(adminID, fmt.Sprintf("Возврат по заказу №%d оформлен ✅", id))
}

func formatAdminOrder(o *models.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Заказ №%d</b> — %s\n", o.ID, statusLabel(o.Status))
	fmt.Fprintf(&sb, "Пользователь: %d", o.UserID)
	if o.User != nil && o.User.Username != "" {
		fmt.Fprintf(&sb, " (@%s)", html.EscapeString(o.User.Username))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s, %s\n", html.EscapeString(o.CustomerName), html.EscapeString(o.CustomerPhone))
	fmt.Fprintf(&sb, "Адрес: %s\n", html.EscapeString(o.DeliveryAddress))

	for _, item := range o.Items {
		fmt.Fprintf(&sb, "• %s × %d\n", html.EscapeString(item.Name), item.Quantity)
	}
	fmt.Fprintf(&sb, "Сумма: <b>%s</b>", formatPrice(o.Amount))

	if o.OpencartOrderID != nil {
		fmt.Fprintf(&sb, "\nOpenCart: №%d", *o.OpencartOrderID)
	}
	return sb.String()
}

func adminOrderKeyboard(o *models.Order) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if o.Status == models.OrderPaid {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("✔ Выполнен", "adm:done:"+strconv.FormatUint(uint64(o.ID), 10)),
			tgbotapi.NewInlineKeyboardButtonData("↩ Возврат", "adm:refund:"+strconv.FormatUint(uint64(o.ID), 10)),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("« Админка", "adm"),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
