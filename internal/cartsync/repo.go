package cartsync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vitrineapp/cart-service/internal/cart"
)

// Snapshot is one remote cart row: at most one live row per (user, store).
type Snapshot struct {
	UserID         string
	StoreID        string
	StoreName      string
	StoreSlug      *string
	Items          []cart.CartItem
	CouponCode     *string
	CouponDiscount float64
	UpdatedAt      time.Time
}

// snapshotRow is the persisted shape. It lives here rather than in
// pkg/db/models because the jsonb item payload is the cart package's type.
type snapshotRow struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         string          `gorm:"column:user_id;not null;uniqueIndex:cart_snapshots_user_store_key"`
	StoreID        string          `gorm:"column:store_id;not null;uniqueIndex:cart_snapshots_user_store_key"`
	StoreName      string          `gorm:"column:store_name;not null;default:''"`
	StoreSlug      *string         `gorm:"column:store_slug"`
	Items          []cart.CartItem `gorm:"column:items;type:jsonb;serializer:json"`
	CouponCode     *string         `gorm:"column:coupon_code"`
	CouponDiscount float64         `gorm:"column:coupon_discount;not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at"`
}

func (snapshotRow) TableName() string { return "cart_snapshots" }

// Repository persists remote cart snapshots.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a snapshot repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListByUser returns every snapshot stored for the user.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Snapshot, error) {
	var rows []snapshotRow
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	snapshots := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, Snapshot{
			UserID:         row.UserID,
			StoreID:        row.StoreID,
			StoreName:      row.StoreName,
			StoreSlug:      row.StoreSlug,
			Items:          row.Items,
			CouponCode:     row.CouponCode,
			CouponDiscount: row.CouponDiscount,
			UpdatedAt:      row.UpdatedAt,
		})
	}
	return snapshots, nil
}

// Upsert creates or replaces the row keyed by (user_id, store_id). Conflict
// resolution is replace, never a field-level merge.
func (r *Repository) Upsert(ctx context.Context, snapshot Snapshot) error {
	row := snapshotRow{
		ID:             uuid.New(),
		UserID:         snapshot.UserID,
		StoreID:        snapshot.StoreID,
		StoreName:      snapshot.StoreName,
		StoreSlug:      snapshot.StoreSlug,
		Items:          snapshot.Items,
		CouponCode:     snapshot.CouponCode,
		CouponDiscount: snapshot.CouponDiscount,
		UpdatedAt:      snapshot.UpdatedAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "store_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"store_name", "store_slug", "items", "coupon_code", "coupon_discount", "updated_at",
			}),
		}).
		Create(&row).
		Error
}

// Delete removes the snapshot for (user, store). Errors propagate so the
// caller can retry once.
func (r *Repository) Delete(ctx context.Context, userID, storeID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND store_id = ?", userID, storeID).
		Delete(&snapshotRow{}).
		Error
}
