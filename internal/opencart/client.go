// Package opencart зеркалирует оплаченные заказы в витрину OpenCart.
// Чтение каталога идёт напрямую из БД (пакет catalog), запись — только
// через HTTP API магазина.
package opencart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wifiobd/shopbot/internal/models"
)

var ErrAPI = errors.New("opencart: api error")

// Статусы заказа OpenCart, которые использует бот.
const (
	StatusProcessing = 2
	StatusComplete   = 5
	StatusCanceled   = 7
	StatusRefunded   = 11
)

// Client — клиент API OpenCart. Запросы form-encoded, токен передаётся
// параметром запроса.
type Client struct {
	apiURL     string
	apiToken   string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(apiURL, apiToken string, log *slog.Logger) *Client {
	return &Client{
		apiURL:   strings.TrimRight(apiURL, "/"),
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

// Customer — данные покупателя для создания учётки в OpenCart.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Telephone string
}

type apiResponse struct {
	CustomerID int64           `json:"customer_id"`
	OrderID    int64           `json:"order_id"`
	Success    json.RawMessage `json:"success,omitempty"`
	Error      json.RawMessage `json:"error,omitempty"`
}

// CreateCustomer регистрирует покупателя и возвращает его customer_id.
func (c *Client) CreateCustomer(ctx context.Context, customer Customer) (int64, error) {
	lastName := customer.LastName
	if lastName == "" {
		lastName = "Telegram"
	}

	form := url.Values{
		"firstname":         {customer.FirstName},
		"lastname":          {lastName},
		"email":             {customer.Email},
		"telephone":         {customer.Telephone},
		"customer_group_id": {"1"},
		"newsletter":        {"0"},
	}

	resp, err := c.post(ctx, "customer/add", form)
	if err != nil {
		return 0, err
	}
	if resp.CustomerID == 0 {
		return 0, fmt.Errorf("%w: customer/add вернул пустой customer_id", ErrAPI)
	}

	c.log.Info("покупатель создан в opencart", "customer_id", resp.CustomerID)
	return resp.CustomerID, nil
}

// CreateOrder создаёт заказ в OpenCart по снимку заказа бота и
// возвращает его order_id. Позиции передаются из замороженного снимка,
// цены витрины на этот момент значения не имеют.
func (c *Client) CreateOrder(ctx context.Context, order *models.Order, customerID int64) (int64, error) {
	firstName, lastName := splitName(order.CustomerName)

	form := url.Values{
		"customer_id":       {fmt.Sprint(customerID)},
		"customer_group_id": {"1"},
		"firstname":         {firstName},
		"lastname":          {lastName},
		"email":             {order.CustomerEmail},
		"telephone":         {order.CustomerPhone},
		"payment_method":    {"ЮKassa"},
		"payment_code":      {"yookassa"},
		"comment":           {order.DeliveryComment},
		"total":             {order.Amount.StringFixed(2)},
		"order_status_id":   {fmt.Sprint(StatusProcessing)},
	}

	if order.DeliveryAddress == "Самовывоз" {
		form.Set("shipping_method", "Самовывоз")
		form.Set("shipping_code", "pickup.pickup")
	} else {
		form.Set("shipping_method", "Доставка")
		form.Set("shipping_code", "flat.flat")
		form.Set("shipping_address_1", order.DeliveryAddress)
	}

	for i, item := range order.Items {
		prefix := fmt.Sprintf("products[%d]", i)
		form.Set(prefix+"[product_id]", fmt.Sprint(item.ProductID))
		form.Set(prefix+"[name]", item.Name)
		form.Set(prefix+"[model]", item.Model)
		form.Set(prefix+"[quantity]", fmt.Sprint(item.Quantity))
		form.Set(prefix+"[price]", item.Price.StringFixed(2))
	}

	resp, err := c.post(ctx, "order/add", form)
	if err != nil {
		return 0, err
	}
	if resp.OrderID == 0 {
		return 0, fmt.Errorf("%w: order/add вернул пустой order_id", ErrAPI)
	}

	c.log.Info("заказ создан в opencart", "opencart_order_id", resp.OrderID)
	return resp.OrderID, nil
}

// UpdateOrderStatus меняет статус заказа на витрине.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID int64, statusID int) error {
	form := url.Values{
		"order_id":        {fmt.Sprint(orderID)},
		"order_status_id": {fmt.Sprint(statusID)},
	}

	_, err := c.post(ctx, "order/update", form)
	return err
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) (*apiResponse, error) {
	u := c.apiURL + "/" + endpoint
	if c.apiToken != "" {
		u += "?token=" + url.QueryEscape(c.apiToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("opencart: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s: %s", ErrAPI, endpoint, string(data))
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("opencart: decode response: %w", err)
	}
	if len(out.Error) > 0 && string(out.Error) != "null" && string(out.Error) != `""` && string(out.Error) != "[]" {
		return nil, fmt.Errorf("%w: %s: %s", ErrAPI, endpoint, string(out.Error))
	}
	return &out, nil
}

func splitName(full string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(full), " ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], "Telegram"
}
