package catalog

import (
	"context"

	"github.com/vitrineapp/cart-service/internal/cart"
	"github.com/vitrineapp/cart-service/pkg/db/models"
	pkgerrors "github.com/vitrineapp/cart-service/pkg/errors"
	"github.com/vitrineapp/cart-service/pkg/logger"
	"github.com/vitrineapp/cart-service/pkg/metrics"
)

// ProductLister is the slice of the catalog repository the validator needs.
type ProductLister interface {
	ListByStore(ctx context.Context, storeID string) ([]models.Product, error)
}

// Report names the lines a validation pass touched, for user-facing messaging.
// Silent image refreshes are deliberately not reported.
type Report struct {
	Removed []string `json:"removed"`
	Updated []string `json:"updated"`
}

// Validator reconciles cart lines against live catalog rows before checkout.
type Validator struct {
	products ProductLister
	logg     *logger.Logger
	metrics  *metrics.CartMetrics
}

// NewValidator constructs a validator over the given product source.
func NewValidator(products ProductLister, logg *logger.Logger, m *metrics.CartMetrics) (*Validator, error) {
	if products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product lister is required")
	}
	return &Validator{products: products, logg: logg, metrics: m}, nil
}

// ValidateStore re-checks every line of the store's cart against the live
// catalog: lines whose product is gone or unavailable are dropped, lines whose
// effective price changed are repriced in place, and changed images are
// refreshed without a report entry. A failed catalog fetch leaves the cart
// untouched and surfaces the error instead.
func (v *Validator) ValidateStore(ctx context.Context, mgr *cart.Manager, storeID string) (Report, error) {
	report := Report{}
	current := mgr.CartForStore(storeID)
	if current.IsEmpty() {
		return report, nil
	}

	products, err := v.products.ListByStore(ctx, storeID)
	if err != nil {
		v.metrics.IncSyncFailure("catalog_fetch")
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch store catalog")
	}

	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	kept := make([]cart.CartItem, 0, len(current.Items))
	changed := false
	for _, item := range current.Items {
		product, ok := byID[item.ProductID]
		if !ok || !product.IsAvailable {
			report.Removed = append(report.Removed, item.ProductName)
			changed = true
			continue
		}

		lineEffective := cart.EffectivePrice(item.Price, item.PromotionalPrice)
		liveEffective := cart.EffectivePrice(product.Price, product.PromotionalPrice)
		if lineEffective != liveEffective {
			item.Price = product.Price
			item.PromotionalPrice = clonePrice(product.PromotionalPrice)
			report.Updated = append(report.Updated, item.ProductName)
			changed = true
		}

		if live := imageURL(product); live != "" && live != item.ImageURL {
			item.ImageURL = live
			changed = true
		}

		kept = append(kept, item)
	}

	if changed {
		mgr.ReplaceStoreItems(ctx, storeID, kept)
		if v.logg != nil {
			v.logg.Info(v.logg.WithFields(ctx, map[string]any{
				"store_id": storeID,
				"removed":  len(report.Removed),
				"updated":  len(report.Updated),
			}), "cart revalidated against catalog")
		}
	}
	return report, nil
}

func imageURL(p models.Product) string {
	if p.ImageURL == nil {
		return ""
	}
	return *p.ImageURL
}

func clonePrice(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
