package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wifiobd/shopbot/internal/cart"
	"github.com/wifiobd/shopbot/internal/catalog"
	"github.com/wifiobd/shopbot/internal/checkout"
	"github.com/wifiobd/shopbot/internal/models"
)

func formatPrice(p decimal.Decimal) string {
	return p.StringFixed(2) + " ₽"
}

func formatProduct(p *catalog.Product) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<b>%s</b>\n", html.EscapeString(p.Name))
	if p.Model != "" {
		fmt.Fprintf(&sb, "Модель: %s\n", html.EscapeString(p.Model))
	}
	fmt.Fprintf(&sb, "Цена: <b>%s</b>\n", formatPrice(p.Price))

	if p.InStock() {
		fmt.Fprintf(&sb, "В наличии: %d шт.\n", p.Quantity)
	} else {
		sb.WriteString("Нет в наличии\n")
	}

	if p.Description != "" {
		desc := []rune(stripTags(p.Description))
		if len(desc) > 400 {
			desc = append(desc[:400], '…')
		}
		fmt.Fprintf(&sb, "\n%s", html.EscapeString(string(desc)))
	}
	return sb.String()
}

func formatCart(view *cart.View) string {
	var sb strings.Builder
	sb.WriteString("<b>🛒 Ваша корзина</b>\n\n")

	for _, item := range view.Items {
		fmt.Fprintf(&sb, "%s\n%s × %d = <b>%s</b>\n\n",
			html.EscapeString(item.Product.Name),
			formatPrice(item.Product.Price), item.Quantity, formatPrice(item.Subtotal))
	}

	fmt.Fprintf(&sb, "Итого: <b>%s</b>", formatPrice(view.Total))
	return sb.String()
}

func formatDraft(draft checkout.Draft, view *cart.View) string {
	var sb strings.Builder
	sb.WriteString("<b>Проверьте заказ</b>\n\n")

	for _, item := range view.Items {
		fmt.Fprintf(&sb, "• %s × %d = %s\n",
			html.EscapeString(item.Product.Name), item.Quantity, formatPrice(item.Subtotal))
	}
	fmt.Fprintf(&sb, "\nИтого: <b>%s</b>\n\n", formatPrice(view.Total))

	fmt.Fprintf(&sb, "Имя: %s\n", html.EscapeString(draft.Name))
	fmt.Fprintf(&sb, "Телефон: %s\n", html.EscapeString(draft.Phone))
	if draft.Email != "" {
		fmt.Fprintf(&sb, "Email: %s\n", html.EscapeString(draft.Email))
	}
	if draft.Pickup {
		sb.WriteString("Получение: самовывоз\n")
	} else {
		fmt.Fprintf(&sb, "Доставка: %s\n", html.EscapeString(draft.Address))
	}
	return sb.String()
}

func formatOrder(order *models.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Заказ №%d</b> — %s\n", order.ID, statusLabel(order.Status))
	fmt.Fprintf(&sb, "от %s\n\n", order.CreatedAt.Format("02.01.2006 15:04"))

	for _, item := range order.Items {
		sub := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		fmt.Fprintf(&sb, "• %s × %d = %s\n", html.EscapeString(item.Name), item.Quantity, formatPrice(sub))
	}
	fmt.Fprintf(&sb, "\nСумма: <b>%s</b>", formatPrice(order.Amount))
	return sb.String()
}

func statusLabel(status models.OrderStatus) string {
	switch status {
	case models.OrderPending:
		return "ожидает оплаты"
	case models.OrderPaid:
		return "оплачен"
	case models.OrderCancelled:
		return "отменён"
	case models.OrderCompleted:
		return "выполнен"
	case models.OrderRefunded:
		return "возврат"
	default:
		return string(status)
	}
}

// stripTags убирает html-разметку из описаний OpenCart.
func stripTags(s string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	out := html.UnescapeString(strings.TrimSpace(sb.String()))
	return strings.ReplaceAll(out, "\u00a0", " ")
}
