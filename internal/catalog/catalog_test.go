package catalog

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestReader(t *testing.T) (*Reader, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&ocCategory{}, &ocCategoryDescription{}, &ocProduct{}, &ocProductDescription{}, &ocProductToCategory{})
	require.NoError(t, err)

	return NewReader(db, nil, ""), db
}

func seedProduct(t *testing.T, db *gorm.DB, id int64, name string, price string, qty int, categoryID int64) {
	t.Helper()

	require.NoError(t, db.Create(&ocProduct{
		ProductID: id,
		Model:     name,
		Price:     decimal.RequireFromString(price),
		Quantity:  qty,
		Status:    true,
	}).Error)
	require.NoError(t, db.Create(&ocProductDescription{
		ProductID:  id,
		LanguageID: 1,
		Name:       name,
	}).Error)
	require.NoError(t, db.Create(&ocProductToCategory{ProductID: id, CategoryID: categoryID}).Error)
}

func TestGetCategories(t *testing.T) {
	r, db := newTestReader(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&ocCategory{CategoryID: 1, ParentID: 0, Status: true, SortOrder: 2}).Error)
	require.NoError(t, db.Create(&ocCategoryDescription{CategoryID: 1, LanguageID: 1, Name: "Адаптеры"}).Error)
	require.NoError(t, db.Create(&ocCategory{CategoryID: 2, ParentID: 0, Status: true, SortOrder: 1}).Error)
	require.NoError(t, db.Create(&ocCategoryDescription{CategoryID: 2, LanguageID: 1, Name: "Кабели"}).Error)
	// отключённая категория не показывается
	require.NoError(t, db.Create(&ocCategory{CategoryID: 3, ParentID: 0, Status: false}).Error)
	require.NoError(t, db.Create(&ocCategoryDescription{CategoryID: 3, LanguageID: 1, Name: "Скрытая"}).Error)

	categories, err := r.GetCategories(ctx, 0)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	require.Equal(t, "Кабели", categories[0].Name)
	require.Equal(t, "Адаптеры", categories[1].Name)
}

func TestGetProduct(t *testing.T) {
	r, db := newTestReader(t)
	ctx := context.Background()

	seedProduct(t, db, 42, "ELM327", "500.00", 3, 7)

	p, err := r.GetProduct(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, int64(42), p.ID)
	require.Equal(t, "ELM327", p.Name)
	require.True(t, p.Price.Equal(decimal.RequireFromString("500.00")))
	require.True(t, p.InStock())
	require.Equal(t, int64(7), p.CategoryID)

	_, err = r.GetProduct(ctx, 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetProductsBatch(t *testing.T) {
	r, db := newTestReader(t)
	ctx := context.Background()

	seedProduct(t, db, 1, "Первый", "100.00", 1, 7)
	seedProduct(t, db, 2, "Второй", "200.00", 1, 7)

	batch, err := r.GetProductsBatch(ctx, []int64{1, 2, 555})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Contains(t, batch, int64(1))
	require.Contains(t, batch, int64(2))
	require.NotContains(t, batch, int64(555))

	empty, err := r.GetProductsBatch(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestSearchProductsFallback(t *testing.T) {
	r, db := newTestReader(t)
	ctx := context.Background()

	seedProduct(t, db, 1, "OBD2 адаптер", "900.00", 5, 7)
	seedProduct(t, db, 2, "Кабель USB", "150.00", 5, 7)

	products, err := r.SearchProducts(ctx, "адаптер", 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, int64(1), products[0].ID)
}
