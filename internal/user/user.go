// Package user управляет профилями пользователей бота.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/wifiobd/shopbot/internal/models"
)

var ErrNotFound = errors.New("user: not found")

type Service struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewService(db *gorm.DB, log *slog.Logger) *Service {
	return &Service{db: db, log: log}
}

// GetOrCreate возвращает пользователя, создавая запись при первом
// контакте и обновляя имя/username, если они изменились в Telegram.
func (s *Service) GetOrCreate(ctx context.Context, id int64, username, firstName, lastName string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u = models.User{
			ID:        id,
			Username:  username,
			FirstName: firstName,
			LastName:  lastName,
			IsActive:  true,
		}
		if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
			return nil, fmt.Errorf("user: create: %w", err)
		}
		s.log.Info("новый пользователь", "user_id", id, "username", username)
		return &u, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user: get: %w", err)
	}

	if (username != "" && u.Username != username) ||
		(firstName != "" && u.FirstName != firstName) ||
		(lastName != "" && u.LastName != lastName) {
		u.Username = username
		u.FirstName = firstName
		u.LastName = lastName
		if err := s.db.WithContext(ctx).Save(&u).Error; err != nil {
			return nil, fmt.Errorf("user: update profile: %w", err)
		}
	}
	return &u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user: get: %w", err)
	}
	return &u, nil
}

func (s *Service) UpdatePhone(ctx context.Context, id int64, phone string) error {
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("phone", phone).Error; err != nil {
		return fmt.Errorf("user: update phone: %w", err)
	}
	return nil
}

func (s *Service) UpdateEmail(ctx context.Context, id int64, email string) error {
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("email", email).Error; err != nil {
		return fmt.Errorf("user: update email: %w", err)
	}
	return nil
}

// UpdateOpencartID связывает пользователя с покупателем OpenCart.
func (s *Service) UpdateOpencartID(ctx context.Context, id, customerID int64) error {
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("opencart_customer_id", customerID).Error; err != nil {
		return fmt.Errorf("user: update opencart id: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user: list: %w", err)
	}
	return users, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("user: count: %w", err)
	}
	return n, nil
}
