package carts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vitrineapp/cart-service/internal/cart"
	"github.com/vitrineapp/cart-service/internal/cartsync"
	"github.com/vitrineapp/cart-service/internal/catalog"
	"github.com/vitrineapp/cart-service/pkg/config"
	"github.com/vitrineapp/cart-service/pkg/db/models"
)

type fakeSnapshots struct {
	mu         sync.Mutex
	remote     []cartsync.Snapshot
	upserts    []cartsync.Snapshot
	deletes    []string
	lists      int
	deleteFail int
}

func (f *fakeSnapshots) ListByUser(_ context.Context, userID string) ([]cartsync.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	out := make([]cartsync.Snapshot, len(f.remote))
	copy(out, f.remote)
	return out, nil
}

func (f *fakeSnapshots) Upsert(_ context.Context, snapshot cartsync.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, snapshot)
	return nil
}

func (f *fakeSnapshots) Delete(_ context.Context, userID, storeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteFail > 0 {
		f.deleteFail--
		return errors.New("delete refused")
	}
	f.deletes = append(f.deletes, storeID)
	return nil
}

func (f *fakeSnapshots) counts() (upserts, deletes, lists int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts), len(f.deletes), f.lists
}

type staticCatalog struct {
	rows map[string][]models.Product
}

func (c *staticCatalog) ListByStore(_ context.Context, storeID string) ([]models.Product, error) {
	return c.rows[storeID], nil
}

func newTestService(t *testing.T, repo *fakeSnapshots, rows map[string][]models.Product) Service {
	t.Helper()

	coord, err := cartsync.NewCoordinator(repo, nil, nil, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("coordinator init: %v", err)
	}
	validator, err := catalog.NewValidator(&staticCatalog{rows: rows}, nil, nil)
	if err != nil {
		t.Fatalf("validator init: %v", err)
	}

	shared := cart.NewMemoryStateStore()
	svc, err := NewService(func(string) cart.StateStore { return shared }, coord, validator, nil, nil, config.SyncConfig{
		DebounceInterval: 10 * time.Millisecond,
		QuarantineTTL:    50 * time.Millisecond,
		DeleteRetryDelay: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("service init: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func addInput(storeID, productID string, price float64, qty int) cart.AddItemInput {
	return cart.AddItemInput{
		ProductID:   productID,
		ProductName: productID,
		Price:       price,
		Quantity:    qty,
		StoreID:     storeID,
		StoreName:   "Store " + storeID,
	}
}

func TestLoginMergeRunsOncePerSession(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSnapshots{remote: []cartsync.Snapshot{{
		UserID:    "u1",
		StoreID:   "s1",
		StoreName: "Store s1",
		Items: []cart.CartItem{{
			ID:        cart.LineID("s1", "remote", "", nil, nil, nil, nil),
			ProductID: "remote", ProductName: "remote", Price: 5, Quantity: 1,
			StoreID: "s1", StoreName: "Store s1",
		}},
		UpdatedAt: time.Now().Add(time.Hour),
	}}}
	svc := newTestService(t, repo, nil)

	view, err := svc.GetStoreCart(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("get store cart: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].ProductID != "remote" {
		t.Fatalf("remote snapshot should merge in on first touch: %+v", view.Items)
	}

	svc.GetCart(ctx, "u1")
	svc.GetCart(ctx, "u1")
	if _, _, lists := repo.counts(); lists != 1 {
		t.Fatalf("login merge must run once per session, listed %d times", lists)
	}
}

func TestAddItemPersistsImmediately(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSnapshots{}
	svc := newTestService(t, repo, nil)

	item, view, err := svc.AddItem(ctx, "u1", addInput("s1", "p1", 10, 2))
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if item.ID == "" {
		t.Fatal("added line should carry a derived id")
	}
	if view.ActiveStoreID != "s1" {
		t.Fatalf("adding must activate the target store, got %q", view.ActiveStoreID)
	}
	if view.Total != 20 {
		t.Fatalf("expected total 20, got %v", view.Total)
	}

	if upserts, _, _ := repo.counts(); upserts < 1 {
		t.Fatal("a discrete mutation must persist immediately, not only debounced")
	}
}

func TestRemoveLastItemDeletesRemoteSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSnapshots{}
	svc := newTestService(t, repo, nil)

	item, _, err := svc.AddItem(ctx, "u1", addInput("s1", "p1", 10, 1))
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	view, err := svc.RemoveItem(ctx, "u1", item.ID)
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if view.ActiveStoreID != "" {
		t.Fatalf("emptying the active cart should clear the active store, got %q", view.ActiveStoreID)
	}
	if _, deletes, _ := repo.counts(); deletes != 1 {
		t.Fatalf("emptied cart should delete its remote snapshot, got %d deletes", deletes)
	}
}

func TestDeleteRetriesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSnapshots{deleteFail: 1}
	svc := newTestService(t, repo, nil)

	svc.AddItem(ctx, "u1", addInput("s1", "p1", 10, 1))
	if _, err := svc.ClearCart(ctx, "u1"); err != nil {
		t.Fatalf("clear cart: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if _, deletes, _ := repo.counts(); deletes != 1 {
		t.Fatalf("failed delete should retry once and then succeed, got %d deletes", deletes)
	}
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSnapshots{}
	svc := newTestService(t, repo, nil)

	item, _, _ := svc.AddItem(ctx, "u1", addInput("s1", "p1", 10, 3))
	view, err := svc.UpdateQuantity(ctx, "u1", item.ID, 0)
	if err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if view.ItemCount != 0 {
		t.Fatalf("zero quantity should remove the line, got count %d", view.ItemCount)
	}
}

func TestValidateRepricesThroughService(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSnapshots{}
	svc := newTestService(t, repo, map[string][]models.Product{
		"s1": {{ID: "p1", StoreID: "s1", Name: "p1", Price: 12, IsAvailable: true}},
	})

	svc.AddItem(ctx, "u1", addInput("s1", "p1", 10, 1))
	before, _, _ := repo.counts()

	report, view, err := svc.Validate(ctx, "u1", "")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(report.Updated) != 1 {
		t.Fatalf("expected one repriced line, got %+v", report)
	}
	if view.Total != 12 {
		t.Fatalf("view should reflect the live price, got %v", view.Total)
	}
	if after, _, _ := repo.counts(); after <= before {
		t.Fatal("a repriced cart should persist immediately")
	}
}

func TestValidateEmptyingStoreDeletesSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSnapshots{}
	svc := newTestService(t, repo, map[string][]models.Product{"s1": {}})

	svc.AddItem(ctx, "u1", addInput("s1", "p1", 10, 1))
	report, _, err := svc.Validate(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(report.Removed) != 1 {
		t.Fatalf("missing product should drop the line, got %+v", report)
	}
	if _, deletes, _ := repo.counts(); deletes != 1 {
		t.Fatalf("a store emptied by validation should delete its snapshot, got %d", deletes)
	}
}

func TestMutationsRequireUser(t *testing.T) {
	repo := &fakeSnapshots{}
	svc := newTestService(t, repo, nil)

	if _, _, err := svc.AddItem(context.Background(), "", addInput("s1", "p1", 10, 1)); err == nil {
		t.Fatal("blank user id must be rejected")
	}
}

func TestIdleSessionSweptAfterTTL(t *testing.T) {
	repo := &fakeSnapshots{}
	coord, err := cartsync.NewCoordinator(repo, nil, nil, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("coordinator init: %v", err)
	}
	validator, err := catalog.NewValidator(&staticCatalog{}, nil, nil)
	if err != nil {
		t.Fatalf("validator init: %v", err)
	}

	shared := cart.NewMemoryStateStore()
	svc, err := NewService(func(string) cart.StateStore { return shared }, coord, validator, nil, nil, config.SyncConfig{
		DebounceInterval: 10 * time.Millisecond,
		QuarantineTTL:    50 * time.Millisecond,
		DeleteRetryDelay: 10 * time.Millisecond,
		SessionIdleTTL:   30 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("service init: %v", err)
	}
	t.Cleanup(svc.Close)

	ctx := context.Background()
	if _, _, err := svc.AddItem(ctx, "u1", addInput("s1", "p1", 10, 1)); err != nil {
		t.Fatalf("add item: %v", err)
	}
	_, _, lists := repo.counts()
	if lists != 1 {
		t.Fatalf("lists = %d, want 1", lists)
	}

	time.Sleep(120 * time.Millisecond)

	// the session was swept, so the next touch rebuilds it and re-runs the merge
	if _, err := svc.GetCart(ctx, "u1"); err != nil {
		t.Fatalf("get cart: %v", err)
	}
	_, _, lists = repo.counts()
	if lists != 2 {
		t.Fatalf("lists after sweep = %d, want 2", lists)
	}

	// durable local state survived disposal
	view, err := svc.GetCart(ctx, "u1")
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if view.ItemCount != 1 {
		t.Fatalf("item count after sweep = %d, want 1", view.ItemCount)
	}
}
