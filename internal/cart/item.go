package cart

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Option is a priced customization choice attached to a line item. Addons,
// flavors and sizes all share this shape; a zero Quantity means one.
type Option struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity,omitempty"`
}

// Color is a customization choice carrying a display hex code.
type Color struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	HexCode string  `json:"hex_code"`
	Price   float64 `json:"price"`
}

// CartItem is one line of a store's cart. ID is derived once from the full
// customization snapshot and never recomputed afterwards, so editing a line's
// customization deliberately does not re-key it.
type CartItem struct {
	ID               string   `json:"id"`
	ProductID        string   `json:"productId"`
	ProductName      string   `json:"productName"`
	Price            float64  `json:"price"`
	PromotionalPrice *float64 `json:"promotionalPrice,omitempty"`
	Quantity         int      `json:"quantity"`
	ImageURL         string   `json:"imageUrl,omitempty"`
	StoreID          string   `json:"storeId"`
	StoreName        string   `json:"storeName"`
	Observation      string   `json:"observation,omitempty"`
	Addons           []Option `json:"addons,omitempty"`
	Flavors          []Option `json:"flavors,omitempty"`
	Size             *Option  `json:"size,omitempty"`
	Color            *Color   `json:"color,omitempty"`
	Category         string   `json:"category,omitempty"`
}

// LineID derives the stable identity of a cart line from its store, product
// and full customization. Addon and flavor ids are sorted first so selection
// order never changes the key, and empty optional parts contribute nothing.
func LineID(storeID, productID, observation string, addons, flavors []Option, size *Option, color *Color) string {
	parts := []string{storeID, productID}
	if observation != "" {
		parts = append(parts, observation)
	}
	if size != nil && size.ID != "" {
		parts = append(parts, "size:"+size.ID)
	}
	if color != nil && color.ID != "" {
		parts = append(parts, "color:"+color.ID)
	}
	if ids := sortedOptionIDs(addons); len(ids) > 0 {
		parts = append(parts, "addons:"+strings.Join(ids, ","))
	}
	if ids := sortedOptionIDs(flavors); len(ids) > 0 {
		parts = append(parts, "flavors:"+strings.Join(ids, ","))
	}
	return strings.Join(parts, "|")
}

func sortedOptionIDs(opts []Option) []string {
	if len(opts) == 0 {
		return nil
	}
	ids := make([]string, 0, len(opts))
	for _, opt := range opts {
		if opt.ID == "" {
			continue
		}
		ids = append(ids, opt.ID)
	}
	sort.Strings(ids)
	return ids
}

func optionQuantity(opt Option) int64 {
	if opt.Quantity <= 0 {
		return 1
	}
	return int64(opt.Quantity)
}

// unitBasePrice is the per-unit price before addons and flavors: the selected
// size overrides the product price entirely, otherwise the promotional price
// takes precedence over the base price.
func unitBasePrice(item CartItem) decimal.Decimal {
	if item.Size != nil && item.Size.ID != "" {
		return decimal.NewFromFloat(item.Size.Price).
			Mul(decimal.NewFromInt(optionQuantity(*item.Size)))
	}
	if item.PromotionalPrice != nil {
		return decimal.NewFromFloat(*item.PromotionalPrice)
	}
	return decimal.NewFromFloat(item.Price)
}

// LineTotal computes (unit base + addons + flavors) * quantity.
func LineTotal(item CartItem) decimal.Decimal {
	unit := unitBasePrice(item)
	for _, addon := range item.Addons {
		unit = unit.Add(decimal.NewFromFloat(addon.Price).Mul(decimal.NewFromInt(optionQuantity(addon))))
	}
	for _, flavor := range item.Flavors {
		unit = unit.Add(decimal.NewFromFloat(flavor.Price).Mul(decimal.NewFromInt(optionQuantity(flavor))))
	}
	return unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// EffectivePrice is the price a line is actually sold at before
// customization: promotional when present, base otherwise.
func EffectivePrice(price float64, promotional *float64) float64 {
	if promotional != nil {
		return *promotional
	}
	return price
}
