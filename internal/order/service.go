// Package order владеет журналом заказов и сверкой оплат.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/wifiobd/shopbot/internal/cart"
	"github.com/wifiobd/shopbot/internal/checkout"
	"github.com/wifiobd/shopbot/internal/models"
)

var (
	ErrNotFound  = errors.New("order: not found")
	ErrEmptyCart = errors.New("order: cart snapshot is empty")
	// ErrConflict — попытка недопустимого перехода статуса,
	// например отмена уже оплаченного заказа.
	ErrConflict  = errors.New("order: conflicting status transition")
	ErrNoPayment = errors.New("order: no payment attached")
)

type Service struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewService(db *gorm.DB, log *slog.Logger) *Service {
	return &Service{db: db, log: log}
}

// Create создаёт заказ в статусе pending, замораживая позиции и сумму
// из снимка корзины. Дальнейшие изменения цен каталога на заказ не
// влияют.
func (s *Service) Create(ctx context.Context, userID int64, snapshot *cart.View, draft checkout.Draft) (*models.Order, error) {
	if snapshot == nil || snapshot.Empty() {
		return nil, ErrEmptyCart
	}

	items := make([]models.OrderItem, len(snapshot.Items))
	for i, line := range snapshot.Items {
		items[i] = models.OrderItem{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Model:     line.Product.Model,
			Price:     line.Product.Price,
			Quantity:  line.Quantity,
		}
	}

	order := models.Order{
		UserID:          userID,
		Amount:          snapshot.Total,
		Status:          models.OrderPending,
		CustomerName:    draft.Name,
		CustomerPhone:   draft.Phone,
		CustomerEmail:   draft.Email,
		DeliveryAddress: draft.Address,
		DeliveryComment: draft.Comment,
		Items:           items,
	}

	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("order: create: %w", err)
	}

	s.log.Info("заказ создан", "order_id", order.ID, "user_id", userID, "amount", order.Amount.StringFixed(2))
	return &order, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order: get: %w", err)
	}
	return &order, nil
}

// GetForUser возвращает заказ, только если он принадлежит пользователю.
// Чужой заказ неотличим от несуществующего.
func (s *Service) GetForUser(ctx context.Context, id uint, userID int64) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order: get for user: %w", err)
	}
	return &order, nil
}

func (s *Service) GetWithUser(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("User").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order: get with user: %w", err)
	}
	return &order, nil
}

// UpdateStatus выполняет переход статуса, проверяя его допустимость.
// Повтор уже выполненного перехода возвращает ErrConflict: вызывающий
// сам решает, считать ли это идемпотентным успехом.
func (s *Service) UpdateStatus(ctx context.Context, id uint, next models.OrderStatus) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrConflict, order.Status, next)
	}

	updates := map[string]interface{}{"status": next}
	if next == models.OrderPaid {
		now := time.Now().UTC()
		updates["paid_at"] = &now
		order.PaidAt = &now
	}

	if err := s.transition(ctx, id, order.Status, next, updates); err != nil {
		return nil, err
	}
	order.Status = next

	s.log.Info("статус заказа изменён", "order_id", id, "status", next)
	return order, nil
}

// transition записывает новый статус условно: WHERE сверяет статус, от
// которого вызывающий отталкивался. Конкурентный писатель, успевший
// раньше, обнуляет RowsAffected, и проигравший получает ErrConflict
// вместо перетирания чужого перехода.
func (s *Service) transition(ctx context.Context, id uint, from, to models.OrderStatus, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("order: update status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s -> %s", ErrConflict, from, to)
	}
	return nil
}

// AttachPayment сохраняет ссылку на платёж шлюза. Повторная попытка
// оплаты перезаписывает ссылку: заказ один, платежей может быть
// несколько, актуален последний.
func (s *Service) AttachPayment(ctx context.Context, id uint, paymentID string) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderPending).
		Update("payment_id", paymentID)
	if res.Error != nil {
		return fmt.Errorf("order: attach payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Service) SetOpencartOrderID(ctx context.Context, id uint, opencartOrderID int64) error {
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).
		Update("opencart_order_id", opencartOrderID).Error; err != nil {
		return fmt.Errorf("order: set opencart order id: %w", err)
	}
	return nil
}

func (s *Service) SetMirrorState(ctx context.Context, id uint, state models.MirrorState) error {
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).
		Update("mirror_state", state).Error; err != nil {
		return fmt.Errorf("order: set mirror state: %w", err)
	}
	return nil
}

func (s *Service) ByUser(ctx context.Context, userID int64, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("order: by user: %w", err)
	}
	return orders, nil
}

func (s *Service) Recent(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Preload("User").
		Order("created_at DESC").Limit(limit).Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("order: recent: %w", err)
	}
	return orders, nil
}

func (s *Service) Pending(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Where("status = ?", models.OrderPending).
		Order("created_at DESC").Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("order: pending: %w", err)
	}
	return orders, nil
}

// Unmirrored возвращает оплаченные заказы, ещё не дозеркаленные в
// OpenCart. Их дожимает фоновый воркер пакета opencart.
func (s *Service) Unmirrored(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("status = ? AND mirror_state <> ?", models.OrderPaid, models.MirrorDone).
		Order("paid_at").Limit(limit).Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("order: unmirrored: %w", err)
	}
	return orders, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("order: count: %w", err)
	}
	return n, nil
}
