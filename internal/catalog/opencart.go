package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Таблицы OpenCart, которые нужны боту. Описания вынесены в отдельные
// таблицы с language_id, как это устроено в самом OpenCart.
type ocCategory struct {
	CategoryID int64 `gorm:"column:category_id;primaryKey"`
	ParentID   int64 `gorm:"column:parent_id"`
	Image      string `gorm:"column:image"`
	SortOrder  int    `gorm:"column:sort_order"`
	Status     bool   `gorm:"column:status"`
}

func (ocCategory) TableName() string { return "oc_category" }

type ocCategoryDescription struct {
	CategoryID  int64  `gorm:"column:category_id;primaryKey"`
	LanguageID  int64  `gorm:"column:language_id;primaryKey"`
	Name        string `gorm:"column:name"`
	Description string `gorm:"column:description"`
}

func (ocCategoryDescription) TableName() string { return "oc_category_description" }

type ocProduct struct {
	ProductID int64           `gorm:"column:product_id;primaryKey"`
	Model     string          `gorm:"column:model"`
	SKU       string          `gorm:"column:sku"`
	Price     decimal.Decimal `gorm:"column:price;type:decimal(15,4)"`
	Quantity  int             `gorm:"column:quantity"`
	Image     string          `gorm:"column:image"`
	SortOrder int             `gorm:"column:sort_order"`
	Status    bool            `gorm:"column:status"`
}

func (ocProduct) TableName() string { return "oc_product" }

type ocProductDescription struct {
	ProductID   int64  `gorm:"column:product_id;primaryKey"`
	LanguageID  int64  `gorm:"column:language_id;primaryKey"`
	Name        string `gorm:"column:name"`
	Description string `gorm:"column:description"`
}

func (ocProductDescription) TableName() string { return "oc_product_description" }

type ocProductToCategory struct {
	ProductID  int64 `gorm:"column:product_id;primaryKey"`
	CategoryID int64 `gorm:"column:category_id;primaryKey"`
}

func (ocProductToCategory) TableName() string { return "oc_product_to_category" }

// Reader — витрина каталога поверх БД OpenCart. Поиск при наличии
// клиента Elasticsearch идёт через индекс, иначе по LIKE в БД.
type Reader struct {
	db         *gorm.DB
	es         *elasticsearch.Client
	esIndex    string
	languageID int64
}

func NewReader(db *gorm.DB, es *elasticsearch.Client, esIndex string) *Reader {
	return &Reader{db: db, es: es, esIndex: esIndex, languageID: 1}
}

const productColumns = "p.product_id AS id, pd.name, pd.description, p.model, p.sku, p.price, p.quantity, p.image"

func (r *Reader) GetCategories(ctx context.Context, parentID int64) ([]Category, error) {
	var rows []struct {
		CategoryID int64
		Name       string
		Image      string
		ParentID   int64
		SortOrder  int
	}
	err := r.db.WithContext(ctx).
		Table("oc_category AS c").
		Select("c.category_id, cd.name, c.image, c.parent_id, c.sort_order").
		Joins("JOIN oc_category_description cd ON cd.category_id = c.category_id").
		Where("c.parent_id = ? AND c.status = ? AND cd.language_id = ?", parentID, true, r.languageID).
		Order("c.sort_order, cd.name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: categories: %w", err)
	}

	categories := make([]Category, len(rows))
	for i, row := range rows {
		categories[i] = Category{
			ID:        row.CategoryID,
			Name:      row.Name,
			Image:     row.Image,
			ParentID:  row.ParentID,
			SortOrder: row.SortOrder,
		}
	}
	return categories, nil
}

func (r *Reader) GetCategory(ctx context.Context, id int64) (*Category, error) {
	var row struct {
		CategoryID int64
		Name       string
		Image      string
		ParentID   int64
		SortOrder  int
	}
	res := r.db.WithContext(ctx).
		Table("oc_category AS c").
		Select("c.category_id, cd.name, c.image, c.parent_id, c.sort_order").
		Joins("JOIN oc_category_description cd ON cd.category_id = c.category_id").
		Where("c.category_id = ? AND cd.language_id = ?", id, r.languageID).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return nil, fmt.Errorf("catalog: category %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &Category{ID: row.CategoryID, Name: row.Name, Image: row.Image, ParentID: row.ParentID, SortOrder: row.SortOrder}, nil
}

type productRow struct {
	ID          int64
	Name        string
	Description string
	Model       string
	SKU         string
	Price       decimal.Decimal
	Quantity    int
	Image       string
}

func (row productRow) toProduct() Product {
	return Product{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Model:       row.Model,
		SKU:         row.SKU,
		Price:       row.Price,
		Quantity:    row.Quantity,
		Image:       row.Image,
	}
}

func (r *Reader) GetProducts(ctx context.Context, categoryID int64, limit, offset int) ([]Product, error) {
	var rows []productRow
	err := r.db.WithContext(ctx).
		Table("oc_product AS p").
		Select(productColumns).
		Joins("JOIN oc_product_description pd ON pd.product_id = p.product_id").
		Joins("JOIN oc_product_to_category pc ON pc.product_id = p.product_id").
		Where("pc.category_id = ? AND p.status = ? AND pd.language_id = ?", categoryID, true, r.languageID).
		Order("p.sort_order, pd.name").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: products of category %d: %w", categoryID, err)
	}

	products := make([]Product, len(rows))
	for i, row := range rows {
		products[i] = row.toProduct()
		products[i].CategoryID = categoryID
	}
	return products, nil
}

func (r *Reader) CountProducts(ctx context.Context, categoryID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Table("oc_product AS p").
		Joins("JOIN oc_product_to_category pc ON pc.product_id = p.product_id").
		Where("pc.category_id = ? AND p.status = ?", categoryID, true).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("catalog: count products of category %d: %w", categoryID, err)
	}
	return n, nil
}

func (r *Reader) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var row productRow
	res := r.db.WithContext(ctx).
		Table("oc_product AS p").
		Select(productColumns).
		Joins("JOIN oc_product_description pd ON pd.product_id = p.product_id").
		Where("p.product_id = ? AND pd.language_id = ?", id, r.languageID).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return nil, fmt.Errorf("catalog: product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	product := row.toProduct()

	var pc ocProductToCategory
	if err := r.db.WithContext(ctx).Where("product_id = ?", id).Limit(1).Find(&pc).Error; err == nil {
		product.CategoryID = pc.CategoryID
	}
	return &product, nil
}

func (r *Reader) GetProductsBatch(ctx context.Context, ids []int64) (map[int64]Product, error) {
	products := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	var rows []productRow
	err := r.db.WithContext(ctx).
		Table("oc_product AS p").
		Select(productColumns).
		Joins("JOIN oc_product_description pd ON pd.product_id = p.product_id").
		Where("p.product_id IN ? AND pd.language_id = ?", ids, r.languageID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: products batch: %w", err)
	}

	for _, row := range rows {
		products[row.ID] = row.toProduct()
	}
	return products, nil
}

// SearchProducts ищет по индексу Elasticsearch и возвращает товары из БД,
// чтобы цены всегда были актуальными. Без ES — fallback на LIKE.
func (r *Reader) SearchProducts(ctx context.Context, query string, limit int) ([]Product, error) {
	if r.es == nil {
		return r.searchLike(ctx, query, limit)
	}

	ids, err := searchIDs(ctx, r.es, r.esIndex, query, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	batch, err := r.GetProductsBatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := batch[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (r *Reader) searchLike(ctx context.Context, query string, limit int) ([]Product, error) {
	pattern := "%" + query + "%"
	var rows []productRow
	err := r.db.WithContext(ctx).
		Table("oc_product AS p").
		Select(productColumns).
		Joins("JOIN oc_product_description pd ON pd.product_id = p.product_id").
		Where("p.status = ? AND pd.language_id = ? AND (pd.name LIKE ? OR p.model LIKE ?)",
			true, r.languageID, pattern, pattern).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: search %q: %w", query, err)
	}

	products := make([]Product, len(rows))
	for i, row := range rows {
		products[i] = row.toProduct()
	}
	return products, nil
}

// IsNotFound сообщает, что товар или категория больше не резолвятся.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
