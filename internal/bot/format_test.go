package bot

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wifiobd/shopbot/internal/cart"
	"github.com/wifiobd/shopbot/internal/catalog"
	"github.com/wifiobd/shopbot/internal/models"
)

func TestFormatPrice(t *testing.T) {
	require.Equal(t, "1000.00 ₽", formatPrice(decimal.RequireFromString("1000")))
	require.Equal(t, "99.90 ₽", formatPrice(decimal.RequireFromString("99.9")))
}

func TestStripTags(t *testing.T) {
	in := "<p>Сканер <b>ELM327</b> v1.5</p>&nbsp;для диагностики"
	require.Equal(t, "Сканер ELM327 v1.5 для диагностики", stripTags(in))
}

func TestFormatCartEscapesHTML(t *testing.T) {
	price := decimal.RequireFromString("500.00")
	view := &cart.View{
		Items: []cart.ViewItem{{
			Product:  catalog.Product{ID: 1, Name: "Сканер <OBD>", Price: price},
			Quantity: 1,
			Subtotal: price,
		}},
		Total: price,
	}

	out := formatCart(view)
	require.Contains(t, out, "Сканер &lt;OBD&gt;")
	require.Contains(t, out, "500.00 ₽")
}

func TestStatusLabel(t *testing.T) {
	require.Equal(t, "ожидает оплаты", statusLabel(models.OrderPending))
	require.Equal(t, "оплачен", statusLabel(models.OrderPaid))
	require.Equal(t, "unknown", statusLabel(models.OrderStatus("unknown")))
}

func TestParseID(t *testing.T) {
	id, err := parseID("prod:42")
	require.NoError(t, err)
	require.EqualValues(t, 42, id)

	id, err = parseID("cat:7:10")
	require.NoError(t, err)
	require.EqualValues(t, 10, id)

	_, err = parseID("prod:abc")
	require.Error(t, err)
}
