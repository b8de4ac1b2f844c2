package cart

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wifiobd/shopbot/internal/catalog"
)

// fakeCatalog отдаёт товары из карты, имитируя БД OpenCart.
type fakeCatalog struct {
	products map[int64]catalog.Product
}

func (f *fakeCatalog) GetProductsBatch(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := make(map[int64]catalog.Product)
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, *fakeCatalog) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cat := &fakeCatalog{products: map[int64]catalog.Product{
		1: {ID: 1, Name: "ELM327", Price: decimal.RequireFromString("500.00"), Quantity: 10},
		2: {ID: 2, Name: "Кабель", Price: decimal.RequireFromString("150.00"), Quantity: 5},
	}}

	store := NewStore(rdb, cat, 7*24*time.Hour, slog.Default())
	return store, mr, cat
}

func TestAddIncrementsQuantity(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, 100, 1, 2, nil))
	require.NoError(t, store.Add(ctx, 100, 1, 3, nil))

	view, err := store.Get(ctx, 100)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, 5, view.Items[0].Quantity)
}

func TestAddConcurrentKeepsEveryIncrement(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	// несколько горутин бота одновременно жмут «в корзину» —
	// ни один инкремент не должен потеряться
	const workers = 100
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Add(ctx, 100, 1, 1, nil)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	view, err := store.Get(ctx, 100)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, workers, view.Items[0].Quantity)
}

func TestAddFloorsQuantityAtOne(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, 100, 1, 0, nil))
	require.NoError(t, store.Add(ctx, 100, 2, -5, nil))

	view, err := store.Get(ctx, 100)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	for _, item := range view.Items {
		require.Equal(t, 1, item.Quantity)
	}
}

func TestSetQuantity(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, 100, 1, 2, nil))
	require.NoError(t, store.SetQuantity(ctx, 100, 1, 7))

	view, err := store.Get(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 7, view.Items[0].Quantity)

	// ноль и меньше — это удаление
	require.NoError(t, store.SetQuantity(ctx, 100, 1, 0))
	view, err = store.Get(ctx, 100)
	require.NoError(t, err)
	require.True(t, view.Empty())

	// отсутствующая строка
	require.ErrorIs(t, store.SetQuantity(ctx, 100, 99, 1), ErrNotFound)
}

func TestRemoveIsIdempotent(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, 100, 1, 1, nil))
	require.NoError(t, store.Remove(ctx, 100, 1))
	require.NoError(t, store.Remove(ctx, 100, 1))

	n, err := store.Count(ctx, 100)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestClearIsIdempotent(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, 100, 1, 1, nil))
	require.NoError(t, store.Clear(ctx, 100))
	require.NoError(t, store.Clear(ctx, 100))

	view, err := store.Get(ctx, 100)
	require.NoError(t, err)
	require.True(t, view.Empty())
}

func TestCountDistinctLines(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, 100, 1, 3, nil))
	require.NoError(t, store.Add(ctx, 100, 2, 4, nil))

	n, err := store.Count(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestGetRecomputesPricesFromCatalog(t *testing.T) {
	store, _, cat := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, 100, 1, 2, nil))

	view, err := store.Get(ctx, 100)
	require.NoError(t, err)
	require.True(t, view.Total.Equal(decimal.RequireFromString("1000.00")), view.Total.String())

	// цена в каталоге меняется — корзина видит новую цену
	p := cat.products[1]
	p.Price = decimal.RequireFromString("600.00")
	cat.products[1] = p

	view, err = store.Get(ctx, 100)
	require.NoError(t, err)
	require.True(t, view.Total.Equal(decimal.RequireFromString("1200.00")), view.Total.String())
}

func TestGetDropsUnresolvableLines(t *testing.T) {
	store, _, cat := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, 100, 1, 1, nil))
	require.NoError(t, store.Add(ctx, 100, 2, 1, nil))

	// товар пропал из каталога
	delete(cat.products, 2)

	view, err := store.Get(ctx, 100)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, int64(1), view.Items[0].Product.ID)
	require.True(t, view.Total.Equal(decimal.RequireFromString("500.00")))

	// из хранилища строка не удалена, только из выдачи
	n, err := store.Count(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestAddResetsTTL(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, 100, 1, 1, nil))
	require.Greater(t, mr.TTL("cart:100"), time.Duration(0))

	mr.FastForward(6 * 24 * time.Hour)
	require.NoError(t, store.Add(ctx, 100, 2, 1, nil))
	require.Equal(t, 7*24*time.Hour, mr.TTL("cart:100"))
}
