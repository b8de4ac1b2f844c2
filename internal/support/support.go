// Package support ведёт обращения пользователей в поддержку.
package support

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/wifiobd/shopbot/internal/models"
)

var (
	ErrNotFound     = errors.New("support: ticket not found")
	ErrEmptyMessage = errors.New("support: empty message")
	ErrClosed       = errors.New("support: ticket is closed")
)

type Service struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewService(db *gorm.DB, log *slog.Logger) *Service {
	return &Service{db: db, log: log}
}

func (s *Service) Create(ctx context.Context, userID int64, message string) (*models.SupportTicket, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	ticket := models.SupportTicket{
		UserID:  userID,
		Message: message,
		Status:  models.TicketOpen,
	}
	if err := s.db.WithContext(ctx).Create(&ticket).Error; err != nil {
		return nil, fmt.Errorf("support: create: %w", err)
	}

	s.log.Info("создано обращение в поддержку", "ticket_id", ticket.ID, "user_id", userID)
	return &ticket, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	err := s.db.WithContext(ctx).Preload("User").First(&ticket, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("support: get: %w", err)
	}
	return &ticket, nil
}

// Answer сохраняет ответ администратора. Закрытый тикет отвечать
// нельзя, открытый переходит в answered.
func (s *Service) Answer(ctx context.Context, id uint, response string) (*models.SupportTicket, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, ErrEmptyMessage
	}

	ticket, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status == models.TicketClosed {
		return nil, ErrClosed
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"admin_response": response,
		"status":         models.TicketAnswered,
		"answered_at":    &now,
	}
	if err := s.db.WithContext(ctx).Model(&models.SupportTicket{}).Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("support: answer: %w", err)
	}

	ticket.AdminResponse = response
	ticket.Status = models.TicketAnswered
	ticket.AnsweredAt = &now

	s.log.Info("ответ на обращение отправлен", "ticket_id", id)
	return ticket, nil
}

// Close закрывает тикет. Повторное закрытие — no-op.
func (s *Service) Close(ctx context.Context, id uint) error {
	ticket, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if ticket.Status == models.TicketClosed {
		return nil
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&models.SupportTicket{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.TicketClosed, "closed_at": &now}).Error; err != nil {
		return fmt.Errorf("support: close: %w", err)
	}
	return nil
}

// Open возвращает открытые тикеты, старые первыми.
func (s *Service) Open(ctx context.Context, limit int) ([]models.SupportTicket, error) {
	var tickets []models.SupportTicket
	err := s.db.WithContext(ctx).Preload("User").
		Where("status = ?", models.TicketOpen).
		Order("created_at").Limit(limit).Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("support: open: %w", err)
	}
	return tickets, nil
}

func (s *Service) ByUser(ctx context.Context, userID int64, limit int) ([]models.SupportTicket, error) {
	var tickets []models.SupportTicket
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("support: by user: %w", err)
	}
	return tickets, nil
}
