package models

import "time"

// Product is the catalog read model the validator checks cart lines against.
// Identifiers come from the upstream storefront, so they are opaque strings
// rather than locally minted UUIDs.
type Product struct {
	ID               string   `gorm:"column:id;primaryKey"`
	StoreID          string   `gorm:"column:store_id;not null;index:products_store_id_idx"`
	Name             string   `gorm:"column:name;not null"`
	Price            float64  `gorm:"column:price;type:numeric(12,2);not null"`
	PromotionalPrice *float64 `gorm:"column:promotional_price;type:numeric(12,2)"`
	ImageURL         *string  `gorm:"column:image_url"`
	Category         *string  `gorm:"column:category"`
	IsAvailable      bool     `gorm:"column:is_available;not null;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
