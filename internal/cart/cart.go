// Package cart хранит корзины пользователей в Redis.
// Корзина живёт отдельно от заказов: цены в ней не хранятся и каждый
// просмотр пересчитывается по текущему каталогу.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/wifiobd/shopbot/internal/catalog"
)

var ErrNotFound = errors.New("cart: item not found")

// Catalog — то, что корзине нужно от каталога.
type Catalog interface {
	GetProductsBatch(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
}

// Item — строка корзины, как она лежит в Redis.
type Item struct {
	ProductID int64             `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Options   map[string]string `json:"options,omitempty"`
}

// ViewItem — строка корзины, дополненная актуальными данными каталога.
type ViewItem struct {
	Product  catalog.Product   `json:"product"`
	Quantity int               `json:"quantity"`
	Options  map[string]string `json:"options,omitempty"`
	Subtotal decimal.Decimal   `json:"subtotal"`
}

type View struct {
	Items []ViewItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func (v *View) Empty() bool { return len(v.Items) == 0 }

type Store struct {
	rdb     *redis.Client
	catalog Catalog
	ttl     time.Duration
	log     *slog.Logger
}

func NewStore(rdb *redis.Client, cat Catalog, ttl time.Duration, log *slog.Logger) *Store {
	return &Store{rdb: rdb, catalog: cat, ttl: ttl, log: log}
}

func cartKey(userID int64) string { return fmt.Sprintf("cart:%d", userID) }

// maxWatchRetries ограничивает оптимистичные повторы при конкурентных
// записях в одну и ту же корзину.
const maxWatchRetries = 1000

// Add добавляет товар в корзину. Если строка уже есть, количество
// увеличивается. TTL всей корзины сбрасывается при каждой записи.
//
// Бот обрабатывает апдейты в отдельных горутинах, так что инкремент
// выполняется под WATCH: конкурентная запись в корзину срывает EXEC,
// и чтение-инкремент повторяется заново.
func (s *Store) Add(ctx context.Context, userID, productID int64, qty int, options map[string]string) error {
	if qty < 1 {
		qty = 1
	}

	key := cartKey(userID)
	field := strconv.FormatInt(productID, 10)

	return s.watched(ctx, key, func(tx *redis.Tx) error {
		item := Item{ProductID: productID, Quantity: qty, Options: options}

		current, err := tx.HGet(ctx, key, field).Result()
		switch {
		case err == nil:
			var existing Item
			if err := json.Unmarshal([]byte(current), &existing); err != nil {
				return fmt.Errorf("cart: unmarshal item: %w", err)
			}
			existing.Quantity += qty
			item = existing
		case !errors.Is(err, redis.Nil):
			return fmt.Errorf("cart: hget: %w", err)
		}

		return s.put(ctx, tx, key, field, item)
	})
}

// SetQuantity выставляет количество. qty <= 0 эквивалентно удалению.
func (s *Store) SetQuantity(ctx context.Context, userID, productID int64, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, userID, productID)
	}

	key := cartKey(userID)
	field := strconv.FormatInt(productID, 10)

	return s.watched(ctx, key, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, field).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("cart: hget: %w", err)
		}

		var item Item
		if err := json.Unmarshal([]byte(current), &item); err != nil {
			return fmt.Errorf("cart: unmarshal item: %w", err)
		}
		item.Quantity = qty

		return s.put(ctx, tx, key, field, item)
	})
}

func (s *Store) watched(ctx context.Context, key string, txf func(tx *redis.Tx) error) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("cart: update %s: %w", key, redis.TxFailedErr)
}

func (s *Store) put(ctx context.Context, tx *redis.Tx, key, field string, item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("cart: marshal item: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, data)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cart: hset: %w", err)
	}
	return nil
}

// Remove удаляет строку. Удаление отсутствующей строки не ошибка.
func (s *Store) Remove(ctx context.Context, userID, productID int64) error {
	if err := s.rdb.HDel(ctx, cartKey(userID), strconv.FormatInt(productID, 10)).Err(); err != nil {
		return fmt.Errorf("cart: hdel: %w", err)
	}
	return nil
}

// Clear удаляет корзину целиком. Идемпотентно.
func (s *Store) Clear(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("cart: del: %w", err)
	}
	return nil
}

// Count возвращает число различных строк (не суммарное количество).
func (s *Store) Count(ctx context.Context, userID int64) (int, error) {
	n, err := s.rdb.HLen(ctx, cartKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("cart: hlen: %w", err)
	}
	return int(n), nil
}

// Get собирает корзину с актуальными данными каталога. Строки, чьи
// товары больше не резолвятся, молча исключаются из выдачи, но в
// хранилище остаются: они истекут вместе с TTL корзины.
func (s *Store) Get(ctx context.Context, userID int64) (*View, error) {
	raw, err := s.rdb.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart: hgetall: %w", err)
	}

	view := &View{Total: decimal.Zero}
	if len(raw) == 0 {
		return view, nil
	}

	items := make([]Item, 0, len(raw))
	ids := make([]int64, 0, len(raw))
	for _, data := range raw {
		var item Item
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			s.log.Warn("повреждённая строка корзины пропущена", "user_id", userID, "error", err)
			continue
		}
		items = append(items, item)
		ids = append(ids, item.ProductID)
	}

	products, err := s.catalog.GetProductsBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("cart: resolve products: %w", err)
	}

	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		view.Items = append(view.Items, ViewItem{
			Product:  product,
			Quantity: item.Quantity,
			Options:  item.Options,
			Subtotal: subtotal,
		})
		view.Total = view.Total.Add(subtotal)
	}

	sort.Slice(view.Items, func(i, j int) bool {
		return view.Items[i].Product.ID < view.Items[j].Product.ID
	})

	return view, nil
}
