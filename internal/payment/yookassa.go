package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://api.yookassa.ru/v3"

// descriptionLimit — ограничение YooKassa на длину описания платежа.
const descriptionLimit = 128

// YooKassa — клиент API ЮKassa. Аутентификация — basic auth
// shop_id:secret_key, создание платежа и возврата защищены
// заголовком Idempotence-Key.
type YooKassa struct {
	shopID     string
	secretKey  string
	baseURL    string
	returnURL  string
	httpClient *http.Client
	log        *slog.Logger
}

func NewYooKassa(shopID, secretKey, returnURL string, log *slog.Logger) *YooKassa {
	return &YooKassa{
		shopID:    shopID,
		secretKey: secretKey,
		baseURL:   defaultBaseURL,
		returnURL: returnURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: log,
	}
}

type ykAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ykConfirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type ykPayment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Amount       ykAmount          `json:"amount"`
	Confirmation *ykConfirmation   `json:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Description  string            `json:"description,omitempty"`
}

func (y *YooKassa) CreatePayment(ctx context.Context, amount decimal.Decimal, description string, metadata map[string]string) (*Payment, error) {
	if len([]rune(description)) > descriptionLimit {
		description = string([]rune(description)[:descriptionLimit])
	}

	body := map[string]interface{}{
		"amount":  ykAmount{Value: amount.StringFixed(2), Currency: "RUB"},
		"capture": true,
		"confirmation": ykConfirmation{
			Type:      "redirect",
			ReturnURL: y.returnURL,
		},
		"description": description,
	}
	if len(metadata) > 0 {
		body["metadata"] = metadata
	}

	var resp ykPayment
	if err := y.do(ctx, http.MethodPost, "/payments", body, uuid.NewString(), &resp); err != nil {
		return nil, err
	}

	payment := &Payment{ID: resp.ID, Status: mapStatus(resp.Status)}
	if resp.Confirmation != nil {
		payment.RedirectURL = resp.Confirmation.ConfirmationURL
	}

	y.log.Info("платёж создан", "payment_id", payment.ID, "amount", amount.StringFixed(2))
	return payment, nil
}

func (y *YooKassa) CheckStatus(ctx context.Context, id string) (Status, error) {
	var resp ykPayment
	if err := y.do(ctx, http.MethodGet, "/payments/"+id, nil, "", &resp); err != nil {
		return StatusError, err
	}
	return mapStatus(resp.Status), nil
}

func (y *YooKassa) CancelPayment(ctx context.Context, id string) error {
	var resp ykPayment
	return y.do(ctx, http.MethodPost, "/payments/"+id+"/cancel", struct{}{}, uuid.NewString(), &resp)
}

func (y *YooKassa) Refund(ctx context.Context, id string, amount decimal.Decimal) (string, error) {
	body := map[string]interface{}{
		"payment_id": id,
		"amount":     ykAmount{Value: amount.StringFixed(2), Currency: "RUB"},
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := y.do(ctx, http.MethodPost, "/refunds", body, uuid.NewString(), &resp); err != nil {
		return "", err
	}

	y.log.Info("возврат создан", "payment_id", id, "refund_id", resp.ID)
	return resp.ID, nil
}

func (y *YooKassa) do(ctx context.Context, method, path string, body interface{}, idempotenceKey string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("payment: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, y.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("payment: build request: %w", err)
	}
	req.SetBasicAuth(y.shopID, y.secretKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotenceKey != "" {
		req.Header.Set("Idempotence-Key", idempotenceKey)
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s %s: %s", ErrGateway, method, path, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("payment: decode response: %w", err)
	}
	return nil
}

func mapStatus(s string) Status {
	switch s {
	case "pending", "waiting_for_capture":
		return StatusPending
	case "succeeded":
		return StatusSucceeded
	case "canceled":
		return StatusCancelled
	default:
		return StatusError
	}
}
