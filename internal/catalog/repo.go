package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/vitrineapp/cart-service/pkg/db/models"
)

// ProductRepository reads the catalog rows the validator checks carts against.
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository builds a repository tied to the provided GORM DB.
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ListByStore returns every catalog row for the store, available or not.
// The validator decides what absence and unavailability mean for a cart line.
func (r *ProductRepository) ListByStore(ctx context.Context, storeID string) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Find(&products).
		Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
