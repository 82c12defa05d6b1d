package cartsync

import (
	"context"
	"sync"
	"time"

	"github.com/vitrineapp/cart-service/internal/cart"
	pkgerrors "github.com/vitrineapp/cart-service/pkg/errors"
	"github.com/vitrineapp/cart-service/pkg/logger"
	"github.com/vitrineapp/cart-service/pkg/metrics"
)

// SnapshotStore is the remote persistence surface the coordinator needs.
type SnapshotStore interface {
	ListByUser(ctx context.Context, userID string) ([]Snapshot, error)
	Upsert(ctx context.Context, snapshot Snapshot) error
	Delete(ctx context.Context, userID, storeID string) error
}

// Coordinator reconciles local multi-store carts with their remote snapshots.
// Writes are local-first: a failed remote save never rolls back local state,
// it is logged and counted. Only deletes propagate errors, because the caller
// retries those once.
type Coordinator struct {
	repo     SnapshotStore
	logg     *logger.Logger
	metrics  *metrics.CartMetrics
	debounce time.Duration
	clock    func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorClock overrides the time source used for snapshot stamps.
func WithCoordinatorClock(clock func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clock }
}

// NewCoordinator builds a sync coordinator.
func NewCoordinator(repo SnapshotStore, logg *logger.Logger, m *metrics.CartMetrics, debounce time.Duration, opts ...CoordinatorOption) (*Coordinator, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot store is required")
	}
	if debounce <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debounce interval must be positive")
	}
	c := &Coordinator{
		repo:     repo,
		logg:     logg,
		metrics:  m,
		debounce: debounce,
		clock:    time.Now,
		timers:   map[string]*time.Timer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MergeRemote runs the login merge: each remote snapshot wins wholesale over
// the local cart when it is more recent, store by store. Snapshots that come
// back empty after cross-store filtering are discarded entirely. Local-only
// stores are untouched. The error is surfaced so the caller can decide to
// proceed with local state only.
func (c *Coordinator) MergeRemote(ctx context.Context, mgr *cart.Manager) error {
	start := c.clock()
	snapshots, err := c.repo.ListByUser(ctx, mgr.UserID())
	if err != nil {
		c.metrics.IncSyncFailure("list")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list remote cart snapshots")
	}
	c.metrics.ObserveSync("list", c.clock().Sub(start))

	for _, snapshot := range snapshots {
		remote := cart.FilterToStore(cart.Cart{
			StoreID:        snapshot.StoreID,
			StoreName:      snapshot.StoreName,
			StoreSlug:      snapshot.StoreSlug,
			Items:          snapshot.Items,
			CouponCode:     snapshot.CouponCode,
			CouponDiscount: snapshot.CouponDiscount,
		}, snapshot.StoreID)
		if remote.IsEmpty() {
			continue
		}
		if !snapshot.UpdatedAt.After(mgr.LastModified(snapshot.StoreID)) {
			continue
		}
		mgr.AdoptRemoteCart(ctx, snapshot.StoreID, remote, snapshot.UpdatedAt)
	}
	return nil
}

// SaveStore immediately persists one store's cart. Empty carts are skipped;
// removals go through Delete instead.
func (c *Coordinator) SaveStore(ctx context.Context, mgr *cart.Manager, storeID string) {
	current := mgr.CartForStore(storeID)
	if current.IsEmpty() {
		return
	}
	c.upsert(ctx, mgr.UserID(), storeID, current)
}

// ScheduleSave coalesces rapid mutations into one remote write per debounce
// window, covering every non-empty store cart. Quarantined stores are skipped
// when the timer fires so a stale save cannot resurrect a cleared cart.
func (c *Coordinator) ScheduleSave(mgr *cart.Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	userID := mgr.UserID()
	if timer, ok := c.timers[userID]; ok {
		timer.Reset(c.debounce)
		return
	}
	c.timers[userID] = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		delete(c.timers, userID)
		c.mu.Unlock()
		c.flush(context.Background(), mgr)
	})
}

func (c *Coordinator) flush(ctx context.Context, mgr *cart.Manager) {
	state := mgr.Snapshot()
	for storeID := range state.Carts {
		if mgr.RecentlyCleared(storeID) {
			continue
		}
		current := mgr.CartForStore(storeID)
		if current.IsEmpty() {
			continue
		}
		c.upsert(ctx, mgr.UserID(), storeID, current)
	}
}

func (c *Coordinator) upsert(ctx context.Context, userID, storeID string, current cart.Cart) {
	snapshot := Snapshot{
		UserID:         userID,
		StoreID:        storeID,
		StoreName:      current.StoreName,
		StoreSlug:      current.StoreSlug,
		Items:          current.Items,
		CouponCode:     current.CouponCode,
		CouponDiscount: current.CouponDiscount,
		UpdatedAt:      c.clock(),
	}

	start := c.clock()
	if err := c.repo.Upsert(ctx, snapshot); err != nil {
		c.metrics.IncSyncFailure("upsert")
		if c.logg != nil {
			ctx = c.logg.WithFields(ctx, map[string]any{"user_id": userID, "store_id": storeID})
			c.logg.Error(ctx, "remote cart save failed", err)
		}
		return
	}
	c.metrics.ObserveSync("upsert", c.clock().Sub(start))
}

// DeleteStore removes the remote snapshot for (user, store). The error
// propagates so the caller can retry once after a short delay.
func (c *Coordinator) DeleteStore(ctx context.Context, userID, storeID string) error {
	start := c.clock()
	if err := c.repo.Delete(ctx, userID, storeID); err != nil {
		c.metrics.IncSyncFailure("delete")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete remote cart snapshot")
	}
	c.metrics.ObserveSync("delete", c.clock().Sub(start))
	return nil
}

// StopUser cancels any pending debounced save for the user.
func (c *Coordinator) StopUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.timers[userID]; ok {
		timer.Stop()
		delete(c.timers, userID)
	}
}

// Close cancels all pending saves.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for userID, timer := range c.timers {
		timer.Stop()
		delete(c.timers, userID)
	}
}
