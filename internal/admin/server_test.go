package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wifiobd/shopbot/internal/cart"
	"github.com/wifiobd/shopbot/internal/catalog"
	"github.com/wifiobd/shopbot/internal/checkout"
	"github.com/wifiobd/shopbot/internal/models"
	"github.com/wifiobd/shopbot/internal/order"
	"github.com/wifiobd/shopbot/internal/support"
	"github.com/wifiobd/shopbot/internal/user"
)

type fakeNotifier struct {
	sent map[int64][]string
}

func (f *fakeNotifier) Notify(userID int64, text string) {
	if f.sent == nil {
		f.sent = make(map[int64][]string)
	}
	f.sent[userID] = append(f.sent[userID], text)
}

type fixture struct {
	e        *echo.Echo
	orders   *order.Service
	support  *support.Service
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Order{}, &models.SupportTicket{}))

	log := slog.Default()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	orders := order.NewService(db, log)
	users := user.NewService(db, log)
	sup := support.NewService(db, log)
	notifier := &fakeNotifier{}

	srv := NewServer(orders, nil, users, sup, notifier, []byte("test-secret"), string(hash), log)

	e := echo.New()
	Register(e, srv)

	return &fixture{e: e, orders: orders, support: sup, notifier: notifier}
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()

	body := bytes.NewBufferString(`{"password":"admin-pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/login", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func seedOrder(t *testing.T, orders *order.Service, userID int64) *models.Order {
	t.Helper()

	price := decimal.RequireFromString("500.00")
	view := &cart.View{
		Items: []cart.ViewItem{{
			Product:  catalog.Product{ID: 1, Name: "ELM327", Price: price},
			Quantity: 2,
			Subtotal: price.Mul(decimal.NewFromInt(2)),
		}},
		Total: price.Mul(decimal.NewFromInt(2)),
	}
	ord, err := orders.Create(context.Background(), userID, view, checkout.Draft{
		Name: "Иван", Phone: "+79161234567", Address: "Самовывоз", Pickup: true,
	})
	require.NoError(t, err)
	return ord
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/login", "", `{"password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/orders", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/orders", "garbage-token", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListAndGetOrders(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	ord := seedOrder(t, f.orders, 100)

	rec := f.do(t, http.MethodGet, "/api/orders", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d", ord.ID), token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/orders/999", token, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	ord := seedOrder(t, f.orders, 100)

	// запрещённый переход
	rec := f.do(t, http.MethodPatch, fmt.Sprintf("/api/orders/%d/status", ord.ID), token, `{"status":"completed"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/api/orders/%d/status", ord.ID), token, `{"status":"paid"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := f.orders.Get(context.Background(), ord.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderPaid, got.Status)

	// пользователь получил уведомление
	require.NotEmpty(t, f.notifier.sent[100])
}

func TestTicketFlow(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	ticket, err := f.support.Create(context.Background(), 100, "Где заказ?")
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/tickets", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/tickets/%d/answer", ticket.ID), token, `{"response":"Отправлен"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, f.notifier.sent[100])

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/tickets/%d/close", ticket.ID), token, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	// ответ на закрытый тикет — конфликт
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/tickets/%d/answer", ticket.ID), token, `{"response":"Поздно"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}
