package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// State — состояние диалога оформления заказа.
type State string

const (
	StateIdle              State = "idle"
	StateCollectingName    State = "collecting_name"
	StateCollectingPhone   State = "collecting_phone"
	StateCollectingEmail   State = "collecting_email"
	StateCollectingAddress State = "collecting_address"
	StateConfirming        State = "confirming"
)

// Draft — данные, собранные диалогом. Живёт только внутри сессии;
// при подтверждении замораживается в снимок заказа.
type Draft struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	Pickup  bool   `json:"pickup,omitempty"`
	Comment string `json:"comment,omitempty"`
}

type Session struct {
	State State `json:"state"`
	Draft Draft `json:"draft"`
}

// SessionStore держит сессии диалога в Redis, чтобы обработчики могли
// работать на нескольких воркерах. Неактивная сессия истекает по TTL,
// что возвращает пользователя в Idle и отбрасывает черновик.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

func sessionKey(userID int64) string { return fmt.Sprintf("checkout:%d", userID) }

func (s *SessionStore) Get(ctx context.Context, userID int64) (*Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Session{State: StateIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkout: session get: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("checkout: session unmarshal: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) Put(ctx context.Context, userID int64, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("checkout: session marshal: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("checkout: session set: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("checkout: session del: %w", err)
	}
	return nil
}
