package cart

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitrineapp/cart-service/pkg/logger"
)

const (
	stateKey          = "state"
	modifiedKeyPrefix = "modified:"

	defaultQuarantineTTL = 5 * time.Second
)

// AddItemInput carries everything needed to build a cart line.
type AddItemInput struct {
	ProductID        string
	ProductName      string
	Price            float64
	PromotionalPrice *float64
	Quantity         int
	ImageURL         string
	StoreID          string
	StoreName        string
	StoreSlug        *string
	Observation      string
	Addons           []Option
	Flavors          []Option
	Size             *Option
	Color            *Color
	Category         string
}

// MutationResult reports what a line-scoped mutation did, so the caller can
// decide between a remote persist and a remote delete.
type MutationResult struct {
	StoreID string
	Mutated bool
	Emptied bool
}

// Manager owns one user's MultiStoreCart. All mutations run under its mutex
// and synchronously serialize the full state to the local durable store before
// returning, so an accepted transition is never lost to a restart. Remote
// persistence is the sync coordinator's job, not the manager's.
type Manager struct {
	userID        string
	store         StateStore
	logg          *logger.Logger
	clock         func() time.Time
	quarantineTTL time.Duration

	mu         sync.Mutex
	state      MultiStoreCart
	modified   map[string]time.Time
	quarantine map[string]time.Time
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// WithQuarantineTTL overrides how long a cleared store suppresses debounced
// saves. It should stay at least twice the sync debounce interval.
func WithQuarantineTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.quarantineTTL = ttl }
}

// NewManager builds a manager for one user backed by the given local store.
func NewManager(userID string, store StateStore, logg *logger.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		userID:        userID,
		store:         store,
		logg:          logg,
		clock:         time.Now,
		quarantineTTL: defaultQuarantineTTL,
		state:         NewMultiStoreCart(),
		modified:      map[string]time.Time{},
		quarantine:    map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UserID returns the owning user.
func (m *Manager) UserID() string {
	return m.userID
}

// Init loads persisted state from the local store. A corrupt payload is
// discarded in favor of an empty state; that is never fatal.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok, err := m.store.Get(ctx, stateKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	state, err := DecodeState(raw)
	if err != nil {
		m.warn(ctx, "discarding corrupt local cart state", err)
		m.state = NewMultiStoreCart()
		if removeErr := m.store.Remove(ctx, stateKey); removeErr != nil {
			m.warn(ctx, "removing corrupt local cart state", removeErr)
		}
		return nil
	}
	m.state = state

	for storeID := range m.state.Carts {
		stamp, ok, err := m.store.Get(ctx, modifiedKeyPrefix+storeID)
		if err != nil || !ok {
			continue
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, stamp); parseErr == nil {
			m.modified[storeID] = ts
		}
	}
	return nil
}

// SwitchToStore activates the given store's cart. Switching to the already
// active store is a no-op, reported as unchanged so callers can skip redundant
// downstream effects.
func (m *Manager) SwitchToStore(ctx context.Context, storeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.ActiveStoreID == storeID {
		return false
	}
	m.state.ActiveStoreID = storeID
	m.persistLocked(ctx)
	return true
}

// AddToCart creates the store's cart if absent, merges or appends the line,
// and always activates the target store.
func (m *Manager) AddToCart(ctx context.Context, input AddItemInput) CartItem {
	quantity := input.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	item := CartItem{
		ID:               LineID(input.StoreID, input.ProductID, input.Observation, input.Addons, input.Flavors, input.Size, input.Color),
		ProductID:        input.ProductID,
		ProductName:      input.ProductName,
		Price:            input.Price,
		PromotionalPrice: input.PromotionalPrice,
		Quantity:         quantity,
		ImageURL:         input.ImageURL,
		StoreID:          input.StoreID,
		StoreName:        input.StoreName,
		Observation:      input.Observation,
		Addons:           input.Addons,
		Flavors:          input.Flavors,
		Size:             input.Size,
		Color:            input.Color,
		Category:         input.Category,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.state.Carts[input.StoreID]
	if !ok {
		c = Cart{
			StoreID:   input.StoreID,
			StoreName: input.StoreName,
			StoreSlug: input.StoreSlug,
		}
	}
	m.state.Carts[input.StoreID] = AddLine(c, item)
	m.state.ActiveStoreID = input.StoreID
	m.touchLocked(ctx, input.StoreID)
	m.persistLocked(ctx)
	return item
}

// RemoveFromCart drops a line from the active cart. When the last line goes,
// the store entry is deleted and the active store cleared.
func (m *Manager) RemoveFromCart(ctx context.Context, lineID string) MutationResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	storeID := m.state.ActiveStoreID
	c, ok := m.state.Carts[storeID]
	if storeID == "" || !ok {
		return MutationResult{}
	}

	next := RemoveLine(c, lineID)
	if len(next.Items) == len(c.Items) {
		return MutationResult{StoreID: storeID}
	}
	return m.commitStoreLocked(ctx, storeID, next)
}

// UpdateQuantity replaces a line's quantity on the active cart; zero or less
// removes the line.
func (m *Manager) UpdateQuantity(ctx context.Context, lineID string, quantity int) MutationResult {
	if quantity <= 0 {
		return m.RemoveFromCart(ctx, lineID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	storeID := m.state.ActiveStoreID
	c, ok := m.state.Carts[storeID]
	if storeID == "" || !ok {
		return MutationResult{}
	}
	if !hasLine(c, lineID) {
		return MutationResult{StoreID: storeID}
	}
	return m.commitStoreLocked(ctx, storeID, SetQuantity(c, lineID, quantity))
}

// UpdateCartItem replaces a line's customization on the active cart. The line
// id is deliberately not recomputed.
func (m *Manager) UpdateCartItem(ctx context.Context, lineID, observation string, addons, flavors []Option, replaceFlavors bool) MutationResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	storeID := m.state.ActiveStoreID
	c, ok := m.state.Carts[storeID]
	if storeID == "" || !ok {
		return MutationResult{}
	}
	if !hasLine(c, lineID) {
		return MutationResult{StoreID: storeID}
	}
	return m.commitStoreLocked(ctx, storeID, UpdateLine(c, lineID, observation, addons, flavors, replaceFlavors))
}

// ClearCart removes the active store's cart entirely and quarantines the
// store so an in-flight debounced save cannot resurrect it remotely.
func (m *Manager) ClearCart(ctx context.Context) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	storeID := m.state.ActiveStoreID
	if storeID == "" {
		return "", false
	}
	delete(m.state.Carts, storeID)
	m.state.ActiveStoreID = ""
	m.quarantine[storeID] = m.clock().Add(m.quarantineTTL)
	m.touchLocked(ctx, storeID)
	m.persistLocked(ctx)
	return storeID, true
}

// ApplyCoupon sets the coupon on the active cart.
func (m *Manager) ApplyCoupon(ctx context.Context, code string, discount float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	storeID := m.state.ActiveStoreID
	c, ok := m.state.Carts[storeID]
	if storeID == "" || !ok {
		return false
	}
	c.CouponCode = &code
	c.CouponDiscount = discount
	m.state.Carts[storeID] = c
	m.touchLocked(ctx, storeID)
	m.persistLocked(ctx)
	return true
}

// RemoveCoupon clears the coupon on the active cart.
func (m *Manager) RemoveCoupon(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	storeID := m.state.ActiveStoreID
	c, ok := m.state.Carts[storeID]
	if storeID == "" || !ok {
		return false
	}
	c.CouponCode = nil
	c.CouponDiscount = 0
	m.state.Carts[storeID] = c
	m.touchLocked(ctx, storeID)
	m.persistLocked(ctx)
	return true
}

// Total returns the active cart's total; coupons are not folded in.
func (m *Manager) Total() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Total(m.state.ActiveCart())
}

// ItemCount returns the active cart's summed quantities.
func (m *Manager) ItemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ItemCount(m.state.ActiveCart())
}

// StoreCartCount returns the summed quantities of one store's cart.
func (m *Manager) StoreCartCount(storeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ItemCount(FilterToStore(m.state.Carts[storeID], storeID))
}

// CartForStore returns a store's cart re-filtered to its own items.
func (m *Manager) CartForStore(storeID string) Cart {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.state.Carts[storeID]
	if !ok {
		return Cart{StoreID: storeID}
	}
	return FilterToStore(c, storeID)
}

// ActiveStoreID returns the active store, or empty when none.
func (m *Manager) ActiveStoreID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ActiveStoreID
}

// Snapshot returns a deep copy of the current state.
func (m *Manager) Snapshot() MultiStoreCart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// RecentlyCleared reports whether a store sits inside the clear quarantine
// window.
func (m *Manager) RecentlyCleared(storeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	deadline, ok := m.quarantine[storeID]
	if !ok {
		return false
	}
	if m.clock().After(deadline) {
		delete(m.quarantine, storeID)
		return false
	}
	return true
}

// LastModified returns the locally tracked last-modified time for a store, or
// the zero time when unknown.
func (m *Manager) LastModified(storeID string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modified[storeID]
}

// AdoptRemoteCart replaces a store's cart wholesale from a remote snapshot
// during the login merge. The active store is left alone.
func (m *Manager) AdoptRemoteCart(ctx context.Context, storeID string, c Cart, updatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Carts[storeID] = FilterToStore(c, storeID)
	m.modified[storeID] = updatedAt
	m.setModifiedKeyLocked(ctx, storeID, updatedAt)
	m.persistLocked(ctx)
}

// ReplaceStoreItems swaps a store's item list wholesale, used by catalog
// revalidation. An emptied store is removed from the map; if it was active,
// the active store advances to any remaining store or clears.
func (m *Manager) ReplaceStoreItems(ctx context.Context, storeID string, items []CartItem) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.state.Carts[storeID]
	if !ok {
		return false
	}
	c.Items = items
	result := m.commitStoreLocked(ctx, storeID, c)
	if result.Emptied && m.state.ActiveStoreID == "" {
		// Revalidation advances to any surviving store instead of leaving the
		// user without an active cart.
		if next := m.anyStoreLocked(); next != "" {
			m.state.ActiveStoreID = next
			m.persistLocked(ctx)
		}
	}
	return result.Emptied
}

// commitStoreLocked stores the updated cart, deleting the entry and clearing
// the active store when it emptied. Callers hold the mutex.
func (m *Manager) commitStoreLocked(ctx context.Context, storeID string, c Cart) MutationResult {
	result := MutationResult{StoreID: storeID, Mutated: true}
	if c.IsEmpty() {
		delete(m.state.Carts, storeID)
		result.Emptied = true
		if m.state.ActiveStoreID == storeID {
			m.state.ActiveStoreID = ""
		}
	} else {
		m.state.Carts[storeID] = c
	}
	m.touchLocked(ctx, storeID)
	m.persistLocked(ctx)
	return result
}

func (m *Manager) anyStoreLocked() string {
	for storeID := range m.state.Carts {
		return storeID
	}
	return ""
}

func hasLine(c Cart, lineID string) bool {
	for _, item := range c.Items {
		if item.ID == lineID {
			return true
		}
	}
	return false
}

func (m *Manager) touchLocked(ctx context.Context, storeID string) {
	now := m.clock()
	m.modified[storeID] = now
	m.setModifiedKeyLocked(ctx, storeID, now)
}

func (m *Manager) setModifiedKeyLocked(ctx context.Context, storeID string, ts time.Time) {
	if err := m.store.Set(ctx, modifiedKeyPrefix+storeID, ts.Format(time.RFC3339Nano)); err != nil {
		m.warn(ctx, "persisting cart last-modified stamp", err)
	}
}

func (m *Manager) persistLocked(ctx context.Context) {
	raw, err := EncodeState(m.state)
	if err != nil {
		m.warn(ctx, "encoding cart state", err)
		return
	}
	if err := m.store.Set(ctx, stateKey, raw); err != nil {
		m.warn(ctx, "persisting cart state", err)
	}
}

func (m *Manager) warn(ctx context.Context, msg string, err error) {
	if m.logg == nil {
		return
	}
	ctx = m.logg.WithUserID(ctx, m.userID)
	m.logg.Error(ctx, msg, err)
}
