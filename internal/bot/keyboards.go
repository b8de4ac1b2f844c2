package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wifiobd/shopbot/internal/cart"
	"github.com/wifiobd/shopbot/internal/catalog"
	"github.com/wifiobd/shopbot/internal/models"
)

const productsPerPage = 5

func mainMenuKeyboard(admin bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("🛍 Каталог", "cats")},
		{
			tgbotapi.NewInlineKeyboardButtonData("🛒 Корзина", "cart"),
			tgbotapi.NewInlineKeyboardButtonData("📦 Мои заказы", "orders"),
		},
		{tgbotapi.NewInlineKeyboardButtonData("💬 Поддержка", "support")},
	}
	if admin {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Админка", "adm"),
		})
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func categoriesKeyboard(categories []catalog.Category) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(categories)+1)
	for _, c := range categories {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(c.Name, fmt.Sprintf("cat:%d:0", c.ID)),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("« Меню", "menu"),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func productsKeyboard(categoryID int64, products []catalog.Product, offset int, total int64) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(products)+2)
	for _, p := range products {
		label := fmt.Sprintf("%s — %s", p.Name, formatPrice(p.Price))
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("prod:%d", p.ID)),
		})
	}

	var nav []tgbotapi.InlineKeyboardButton
	if offset > 0 {
		prev := offset - productsPerPage
		if prev < 0 {
			prev = 0
		}
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("« Назад", fmt.Sprintf("cat:%d:%d", categoryID, prev)))
	}
	if int64(offset+productsPerPage) < total {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Вперёд »", fmt.Sprintf("cat:%d:%d", categoryID, offset+productsPerPage)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("« Категории", "cats"),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func productKeyboard(p *catalog.Product) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if p.InStock() {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("➕ В корзину", fmt.Sprintf("add:%d", p.ID)),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("🛒 Корзина", "cart"),
		tgbotapi.NewInlineKeyboardButtonData("« Категории", "cats"),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func cartKeyboard(items []cart.ViewItem) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("✅ Оформить заказ", "checkout")},
	}
	for _, item := range items {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("➖ "+item.Product.Name, fmt.Sprintf("del:%d", item.Product.ID)),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("🗑 Очистить", "clear"),
		tgbotapi.NewInlineKeyboardButtonData("« Меню", "menu"),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func emailKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Пропустить", "co:skipmail"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖ Отменить", "co:cancel"),
		),
	)
}

func addressKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏪 Самовывоз", "co:pickup"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖ Отменить", "co:cancel"),
		),
	)
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить", "co:confirm"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Изменить", "co:edit"),
			tgbotapi.NewInlineKeyboardButtonData("✖ Отменить", "co:cancel"),
		),
	)
}

func cancelKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖ Отменить", "co:cancel"),
		),
	)
}

func paymentKeyboard(orderID uint, payURL string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💳 Оплатить", payURL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Я оплатил", fmt.Sprintf("paycheck:%d", orderID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖ Отменить заказ", fmt.Sprintf("ordcancel:%d", orderID)),
		),
	)
}

func orderKeyboard(order *models.Order) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if order.Status == models.OrderPending {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("💳 Оплатить", fmt.Sprintf("pay:%d", order.ID)),
			tgbotapi.NewInlineKeyboardButtonData("✖ Отменить", fmt.Sprintf("ordcancel:%d", order.ID)),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("« Меню", "menu"),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func adminKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📦 Заказы в работе", "adm:pending"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💬 Открытые тикеты", "adm:tickets"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Меню", "menu"),
		),
	)
}

func adminTicketKeyboard(ticketID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Ответить", fmt.Sprintf("adm:answer:%d", ticketID)),
			tgbotapi.NewInlineKeyboardButtonData("✔ Закрыть", fmt.Sprintf("adm:close:%d", ticketID)),
		),
	)
}
