package carts

import (
	"context"
	"sync"
	"time"

	"github.com/vitrineapp/cart-service/internal/cart"
	"github.com/vitrineapp/cart-service/internal/cartsync"
	"github.com/vitrineapp/cart-service/internal/catalog"
	"github.com/vitrineapp/cart-service/pkg/config"
	pkgerrors "github.com/vitrineapp/cart-service/pkg/errors"
	"github.com/vitrineapp/cart-service/pkg/logger"
	"github.com/vitrineapp/cart-service/pkg/metrics"
)

// CartView is the read shape every mutation and read endpoint returns: the
// active cart plus the cross-store aggregates the storefront header renders.
type CartView struct {
	Cart          cart.Cart `json:"cart"`
	ActiveStoreID string    `json:"activeStoreId"`
	Total         float64   `json:"total"`
	ItemCount     int       `json:"itemCount"`
}

// Service is the single cart API surface consumed by the HTTP layer.
type Service interface {
	GetCart(ctx context.Context, userID string) (CartView, error)
	GetAllCarts(ctx context.Context, userID string) (cart.MultiStoreCart, error)
	SwitchStore(ctx context.Context, userID, storeID string) (CartView, error)
	GetStoreCart(ctx context.Context, userID, storeID string) (cart.Cart, error)
	GetStoreCount(ctx context.Context, userID, storeID string) (int, error)
	AddItem(ctx context.Context, userID string, input cart.AddItemInput) (cart.CartItem, CartView, error)
	RemoveItem(ctx context.Context, userID, lineID string) (CartView, error)
	UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) (CartView, error)
	UpdateItem(ctx context.Context, userID string, input UpdateItemInput) (CartView, error)
	ClearCart(ctx context.Context, userID string) (CartView, error)
	ApplyCoupon(ctx context.Context, userID, code string, discount float64) (CartView, error)
	RemoveCoupon(ctx context.Context, userID string) (CartView, error)
	Validate(ctx context.Context, userID, storeID string) (catalog.Report, CartView, error)
	DisposeSession(userID string)
	Close()
}

// UpdateItemInput carries a customization edit for an existing line. The line
// keeps its identity; only the fields below are replaced.
type UpdateItemInput struct {
	LineID         string
	Observation    string
	Addons         []cart.Option
	Flavors        []cart.Option
	ReplaceFlavors bool
}

type stateStoreFactory func(userID string) cart.StateStore

type session struct {
	mgr      *cart.Manager
	once     sync.Once
	lastSeen time.Time
}

type service struct {
	states    stateStoreFactory
	coord     *cartsync.Coordinator
	validator *catalog.Validator
	logg      *logger.Logger
	metrics   *metrics.CartMetrics
	syncCfg   config.SyncConfig

	mu        sync.Mutex
	sessions  map[string]*session
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewService builds the cart service backed by the provided stack. The state
// factory yields the per-user durable local store (Redis in production, an
// in-memory store in tests).
func NewService(states stateStoreFactory, coord *cartsync.Coordinator, validator *catalog.Validator, logg *logger.Logger, m *metrics.CartMetrics, syncCfg config.SyncConfig) (Service, error) {
	if states == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "state store factory is required")
	}
	if coord == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sync coordinator is required")
	}
	if validator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog validator is required")
	}
	s := &service{
		states:    states,
		coord:     coord,
		validator: validator,
		logg:      logg,
		metrics:   m,
		syncCfg:   syncCfg,
		sessions:  make(map[string]*session),
		done:      make(chan struct{}),
	}
	if syncCfg.SessionIdleTTL > 0 {
		s.wg.Add(1)
		go s.sweepIdleSessions()
	}
	return s, nil
}

// sweepIdleSessions disposes sessions untouched for longer than the idle TTL.
// Disposal only drops the in-process manager; durable state in Redis and the
// remote snapshots are untouched, so the next request rebuilds the session.
func (s *service) sweepIdleSessions() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.syncCfg.SessionIdleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			var idle []string
			s.mu.Lock()
			for userID, sess := range s.sessions {
				if now.Sub(sess.lastSeen) > s.syncCfg.SessionIdleTTL {
					delete(s.sessions, userID)
					idle = append(idle, userID)
				}
			}
			s.mu.Unlock()
			for _, userID := range idle {
				s.coord.StopUser(userID)
			}
		}
	}
}

// sessionFor returns the user's live session, creating and initializing it on
// first touch. Initialization loads local state and runs the login merge, and
// is gated so it never re-runs for the same session.
func (s *service) sessionFor(ctx context.Context, userID string) (*cart.Manager, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}

	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if !ok {
		var opts []cart.ManagerOption
		if s.syncCfg.QuarantineTTL > 0 {
			opts = append(opts, cart.WithQuarantineTTL(s.syncCfg.QuarantineTTL))
		}
		sess = &session{mgr: cart.NewManager(userID, s.states(userID), s.logg, opts...)}
		s.sessions[userID] = sess
	}
	sess.lastSeen = time.Now()
	s.mu.Unlock()

	sess.once.Do(func() {
		if err := sess.mgr.Init(ctx); err != nil {
			// corrupt local state was already replaced with an empty map;
			// the session stays usable
			if s.logg != nil {
				s.logg.Warn(ctx, "local cart state reset after decode failure")
			}
		}
		if err := s.coord.MergeRemote(ctx, sess.mgr); err != nil {
			// local-first: a failed merge leaves local state authoritative
			if s.logg != nil {
				s.logg.Error(ctx, "login cart merge failed", err)
			}
		}
	})
	return sess.mgr, nil
}

func (s *service) GetCart(ctx context.Context, userID string) (CartView, error) {
	mgr, err := s.sessionFor(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	s.metrics.IncOp("get_cart")
	return s.viewOf(mgr), nil
}

func (s *service) GetAllCarts(ctx context.Context, userID string) (cart.MultiStoreCart, error) {
	mgr, err := s.sessionFor(ctx, userID)
	if err != nil {
		return cart.MultiStoreCart{}, err
	}
	s.metrics.IncOp("get_all_carts")
	return mgr.Snapshot(), nil
}

func (s *service) SwitchStore(ctx context.Context, userID, storeID string) (CartView, error) {
	mgr, err := s.sessionFor(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	if storeID == "" {
		return CartView{}, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	if mgr.SwitchToStore(ctx, storeID) {
		s.metrics.IncOp("switch_store")
		s.coord.ScheduleSave(mgr)
	}
	return s.viewOf(mgr), nil
}

func (s *service) GetStoreCart(ctx context.Context, userID, storeID string) (cart.Cart, error) {
	mgr, err := s.sessionFor(ctx, userID)
	if err != nil {
		return cart.Cart{}, err
	}
	return mgr.CartForStore(storeID), nil
}

func (s *service) GetStoreCount(ctx context.Context, userID, storeID string) (int, error) {
	mgr, err := s.sessionFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	return mgr.StoreCartCount(storeID), nil
}

func (s *service) AddItem(ctx context.Context, userID string, input cart.AddItemInput) (cart.CartItem, CartView, error) {
	mgr, err := s.sessionFor(ctx, userID)
	if err != nil {
		return cart.CartItem{}, CartView{}, err
	}
	if input.ProductID == "" || input.StoreID == "" {
		return cart.CartItem{}, CartView{}, pkgerrors.New(pkgerrors.CodeValidation, "product id and store id are required")
	}

	item := mgr.AddToCart(ctx, input)
	s.metrics.IncOp("add_item")
	s.persistMutation(ctx, mgr, cart.MutationResult{StoreID: input.StoreID, Mutated: true})
	return item, s.viewOf(mgr), nil
}

func (s *service) RemoveItem(ctx context.Context, userID, lineID string) (CartView, error) {
	mgr, err := s.sessionFor(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	res := mgr.RemoveFromCart(ctx, lineID)
	if res.Mutated {
		s.metrics.IncOp("remove_item")
		s.persistMutation(ctx, mgr, res)
	}
	return s.viewOf(mgr), nil
}

func (s *service) UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) (CartView, error) {
	mgr, err := s.sessionFor(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	res := mgr.UpdateQuantity(ctx, lineID, quantity)
	if res.Mutated {
		s.metrics.IncOp("update_quantity")
		s.persistMutation(ctx, mgr, res)
	}
	return s.viewOf(mgr), nil
}

func (s *service) UpdateItem(ctx context.Context, userID string, input UpdateItemInput) (CartView, error) {
	mgr, err := s.sessionFor(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	res := mgr.UpdateCartItem(ctx, input.LineID, input.Observation, input.Addons, input.Flavors, input.ReplaceFlavors)
	if res.Mutated {
		s.metrics.IncOp("update_item")
		s.persistMutation(ctx, mgr, res)
	}
	return s.viewOf(mgr), nil
}

func (s *service) ClearCart(ctx context.Context, userID string) (CartView, error) {
	mgr, err := s.sessionFor(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	storeID, cleared := mgr.ClearCart(ctx)
	if cleared {
		s.metrics.IncOp("clear_cart")
		s.deleteWithRetry(ctx, userID, storeID)
	}
	return s.viewOf(mgr), nil
}

func (s *service) ApplyCoupon(ctx context.Context, userID, code string, discount float64) (CartView, error) {
	mgr, err := s.sessionFor(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	if code == "" {
		return CartView{}, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if mgr.ApplyCoupon(ctx, code, discount) {
		s.metrics.IncOp("apply_coupon")
		s.persistMutation(ctx, mgr, cart.MutationResult{StoreID: mgr.ActiveStoreID(), Mutated: true})
	}
	return s.viewOf(mgr), nil
}

func (s *service) RemoveCoupon(ctx context.Context, userID string) (CartView, error) {
	mgr, err := s.sessionFor(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	if mgr.RemoveCoupon(ctx) {
		s.metrics.IncOp("remove_coupon")
		s.persistMutation(ctx, mgr, cart.MutationResult{StoreID: mgr.ActiveStoreID(), Mutated: true})
	}
	return s.viewOf(mgr), nil
}

func (s *service) Validate(ctx context.Context, userID, storeID string) (catalog.Report, CartView, error) {
	mgr, err := s.sessionFor(ctx, userID)
	if err != nil {
		return catalog.Report{}, CartView{}, err
	}
	if storeID == "" {
		storeID = mgr.ActiveStoreID()
	}
	if storeID == "" {
		return catalog.Report{}, s.viewOf(mgr), nil
	}

	report, err := s.validator.ValidateStore(ctx, mgr, storeID)
	if err != nil {
		return catalog.Report{}, s.viewOf(mgr), err
	}
	s.metrics.IncOp("validate")

	if len(report.Removed) > 0 || len(report.Updated) > 0 {
		if mgr.StoreCartCount(storeID) == 0 {
			s.deleteWithRetry(ctx, userID, storeID)
		} else {
			s.persistMutation(ctx, mgr, cart.MutationResult{StoreID: storeID, Mutated: true})
		}
	}
	return report, s.viewOf(mgr), nil
}

// DisposeSession drops the user's live session and cancels any pending
// debounced save. Local durable state is untouched.
func (s *service) DisposeSession(userID string) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	s.coord.StopUser(userID)
}

// Close stops the idle sweeper and disposes every live session.
func (s *service) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	s.mu.Lock()
	for userID := range s.sessions {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()
	s.coord.Close()
}

// persistMutation runs the remote write plan for a discrete mutation: an
// immediate save (or delete, when the store's cart emptied) of the touched
// store, plus the debounced whole-state save as a coalescing safety net.
func (s *service) persistMutation(ctx context.Context, mgr *cart.Manager, res cart.MutationResult) {
	if res.Emptied {
		s.deleteWithRetry(ctx, mgr.UserID(), res.StoreID)
		return
	}
	s.coord.SaveStore(ctx, mgr, res.StoreID)
	s.coord.ScheduleSave(mgr)
}

// deleteWithRetry removes the remote snapshot, retrying exactly once after a
// fixed delay. The final failure is logged; local state stays authoritative.
func (s *service) deleteWithRetry(ctx context.Context, userID, storeID string) {
	if err := s.coord.DeleteStore(ctx, userID, storeID); err == nil {
		return
	}
	delay := s.syncCfg.DeleteRetryDelay
	time.AfterFunc(delay, func() {
		if err := s.coord.DeleteStore(context.Background(), userID, storeID); err != nil && s.logg != nil {
			s.logg.Error(context.Background(), "remote cart delete failed after retry", err)
		}
	})
}

func (s *service) viewOf(mgr *cart.Manager) CartView {
	total, _ := mgr.Total().Float64()
	return CartView{
		Cart:          mgr.Snapshot().ActiveCart(),
		ActiveStoreID: mgr.ActiveStoreID(),
		Total:         total,
		ItemCount:     mgr.ItemCount(),
	}
}
