package cart

import "encoding/json"

// MultiStoreCart is the whole per-user cart state: one cart per store plus the
// currently active store. ActiveStoreID may reference a missing entry after
// corruption; accessors fall back to an empty cart instead of failing.
type MultiStoreCart struct {
	Carts         map[string]Cart `json:"carts"`
	ActiveStoreID string          `json:"activeStoreId,omitempty"`
}

// NewMultiStoreCart returns an empty state.
func NewMultiStoreCart() MultiStoreCart {
	return MultiStoreCart{Carts: map[string]Cart{}}
}

// ActiveCart returns the active store's cart, or an empty cart when no store
// is active or the entry is missing.
func (m MultiStoreCart) ActiveCart() Cart {
	if m.ActiveStoreID == "" {
		return Cart{}
	}
	if c, ok := m.Carts[m.ActiveStoreID]; ok {
		return c
	}
	return Cart{}
}

// Clone deep-copies the state so callers can hand it out without exposing the
// manager's internal map.
func (m MultiStoreCart) Clone() MultiStoreCart {
	carts := make(map[string]Cart, len(m.Carts))
	for storeID, c := range m.Carts {
		items := make([]CartItem, len(c.Items))
		copy(items, c.Items)
		c.Items = items
		carts[storeID] = c
	}
	return MultiStoreCart{Carts: carts, ActiveStoreID: m.ActiveStoreID}
}

// EncodeState serializes the state for the local durable store.
func EncodeState(m MultiStoreCart) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeState parses a serialized state. A corrupt payload yields an empty
// state and the error, letting the caller log and start fresh.
func DecodeState(raw string) (MultiStoreCart, error) {
	state := NewMultiStoreCart()
	if raw == "" {
		return state, nil
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return NewMultiStoreCart(), err
	}
	if state.Carts == nil {
		state.Carts = map[string]Cart{}
	}
	return state, nil
}
