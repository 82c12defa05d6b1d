package cart

import "github.com/shopspring/decimal"

// Cart is the full cart of one store. Items keep insertion order for display;
// every item's StoreID matches the cart's StoreID or it is filtered out by the
// defensive accessors.
type Cart struct {
	StoreID        string     `json:"storeId"`
	StoreName      string     `json:"storeName"`
	StoreSlug      *string    `json:"storeSlug,omitempty"`
	Items          []CartItem `json:"items"`
	CouponCode     *string    `json:"couponCode,omitempty"`
	CouponDiscount float64    `json:"couponDiscount"`
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// AddLine merges the candidate into an existing line with the same derived id
// (quantities accumulate) or appends it as a new line. Returns a new cart; the
// input is never mutated.
func AddLine(c Cart, candidate CartItem) Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)

	merged := false
	for i, existing := range items {
		if existing.ID == candidate.ID {
			existing.Quantity += candidate.Quantity
			items[i] = existing
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, candidate)
	}

	c.Items = items
	return c
}

// RemoveLine drops the line with the given id, if present.
func RemoveLine(c Cart, lineID string) Cart {
	items := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.ID == lineID {
			continue
		}
		items = append(items, item)
	}
	c.Items = items
	return c
}

// SetQuantity replaces a line's quantity; zero or negative removes the line.
func SetQuantity(c Cart, lineID string, quantity int) Cart {
	if quantity <= 0 {
		return RemoveLine(c, lineID)
	}
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	for i, item := range items {
		if item.ID == lineID {
			item.Quantity = quantity
			items[i] = item
			break
		}
	}
	c.Items = items
	return c
}

// UpdateLine replaces a line's customization fields without recomputing its
// id. Flavors are only replaced when replaceFlavors is set, mirroring the
// optional parameter of the storefront API.
func UpdateLine(c Cart, lineID, observation string, addons []Option, flavors []Option, replaceFlavors bool) Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	for i, item := range items {
		if item.ID != lineID {
			continue
		}
		item.Observation = observation
		item.Addons = addons
		if replaceFlavors {
			item.Flavors = flavors
		}
		items[i] = item
		break
	}
	c.Items = items
	return c
}

// Total sums all line totals. Coupon discounts are applied by the checkout
// flow, never folded in here. The result is clamped at zero.
func Total(c Cart) decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(LineTotal(item))
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// ItemCount sums quantities across lines, not the number of lines.
func ItemCount(c Cart) int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// FilterToStore drops any line whose StoreID does not match the given store.
// Stored data is never trusted blindly; contamination is filtered, not thrown.
func FilterToStore(c Cart, storeID string) Cart {
	items := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.StoreID != storeID {
			continue
		}
		items = append(items, item)
	}
	c.Items = items
	return c
}
