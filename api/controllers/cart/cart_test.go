package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/vitrineapp/cart-service/api/middleware"
	cartcore "github.com/vitrineapp/cart-service/internal/cart"
	"github.com/vitrineapp/cart-service/internal/carts"
	"github.com/vitrineapp/cart-service/internal/catalog"
	"github.com/vitrineapp/cart-service/pkg/types"
)

type stubService struct {
	carts.Service

	addItemCalled bool
	addItemInput  cartcore.AddItemInput
	addItemView   carts.CartView
	addItemErr    error

	switchStoreID string
	removeLineID  string
	quantity      int
	quantityLine  string
	validateStore string
	report        catalog.Report
}

func (s *stubService) GetCart(_ context.Context, userID string) (carts.CartView, error) {
	return carts.CartView{ActiveStoreID: "s1", ItemCount: 2, Total: 20}, nil
}

func (s *stubService) AddItem(_ context.Context, _ string, input cartcore.AddItemInput) (cartcore.CartItem, carts.CartView, error) {
	s.addItemCalled = true
	s.addItemInput = input
	if s.addItemErr != nil {
		return cartcore.CartItem{}, carts.CartView{}, s.addItemErr
	}
	return cartcore.CartItem{ID: "line-1", ProductID: input.ProductID}, s.addItemView, nil
}

func (s *stubService) SwitchStore(_ context.Context, _ string, storeID string) (carts.CartView, error) {
	s.switchStoreID = storeID
	return carts.CartView{ActiveStoreID: storeID}, nil
}

func (s *stubService) RemoveItem(_ context.Context, _ string, lineID string) (carts.CartView, error) {
	s.removeLineID = lineID
	return carts.CartView{}, nil
}

func (s *stubService) UpdateQuantity(_ context.Context, _ string, lineID string, quantity int) (carts.CartView, error) {
	s.quantityLine = lineID
	s.quantity = quantity
	return carts.CartView{}, nil
}

func (s *stubService) Validate(_ context.Context, _ string, storeID string) (catalog.Report, carts.CartView, error) {
	s.validateStore = storeID
	return s.report, carts.CartView{}, nil
}

func authedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	}
	return req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
}

func TestGetCartRequiresUserContext(t *testing.T) {
	svc := &stubService{}
	w := httptest.NewRecorder()

	GetCart(svc, nil)(w, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user context, got %d", w.Code)
	}
}

func TestGetCartReturnsView(t *testing.T) {
	svc := &stubService{}
	w := httptest.NewRecorder()

	GetCart(svc, nil)(w, authedRequest(http.MethodGet, "/api/v1/cart", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	data := envelope.Data.(map[string]any)
	if data["activeStoreId"] != "s1" {
		t.Fatalf("unexpected payload: %v", data)
	}
}

func TestAddItemDecodesPayload(t *testing.T) {
	svc := &stubService{}
	body, _ := json.Marshal(AddItemRequest{
		ProductID:   "p1",
		ProductName: "Espresso",
		Price:       10,
		Quantity:    2,
		StoreID:     "s1",
		StoreName:   "Cafe",
		Addons:      []OptionPayload{{ID: "a1", Name: "Oat Milk", Price: 1}},
	})
	w := httptest.NewRecorder()

	AddItem(svc, nil)(w, authedRequest(http.MethodPost, "/api/v1/cart/items", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !svc.addItemCalled {
		t.Fatal("service should receive the add call")
	}
	if svc.addItemInput.ProductID != "p1" || len(svc.addItemInput.Addons) != 1 {
		t.Fatalf("payload not mapped onto input: %+v", svc.addItemInput)
	}
}

func TestAddItemRejectsMissingFields(t *testing.T) {
	svc := &stubService{}
	body, _ := json.Marshal(map[string]any{"productId": "p1"})
	w := httptest.NewRecorder()

	AddItem(svc, nil)(w, authedRequest(http.MethodPost, "/api/v1/cart/items", body))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete payload, got %d", w.Code)
	}
	if svc.addItemCalled {
		t.Fatal("invalid payload must not reach the service")
	}
}

func TestSwitchStoreMapsBody(t *testing.T) {
	svc := &stubService{}
	body, _ := json.Marshal(SwitchStoreRequest{StoreID: "s9"})
	w := httptest.NewRecorder()

	SwitchStore(svc, nil)(w, authedRequest(http.MethodPost, "/api/v1/cart/switch", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.switchStoreID != "s9" {
		t.Fatalf("store id not forwarded, got %q", svc.switchStoreID)
	}
}

func TestRemoveItemReadsLineParam(t *testing.T) {
	svc := &stubService{}

	r := chi.NewRouter()
	r.Delete("/items/{lineId}", RemoveItem(svc, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodDelete, "/items/s1%7Cp1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.removeLineID != "s1|p1" {
		t.Fatalf("line id not decoded from path, got %q", svc.removeLineID)
	}
}

func TestUpdateQuantityForwardsZero(t *testing.T) {
	svc := &stubService{quantity: -1}

	r := chi.NewRouter()
	r.Patch("/items/{lineId}/quantity", UpdateQuantity(svc, nil))

	body, _ := json.Marshal(UpdateQuantityRequest{Quantity: 0})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPatch, "/items/line-1/quantity", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.quantity != 0 || svc.quantityLine != "line-1" {
		t.Fatalf("zero quantity must pass through for removal semantics, got %d on %q", svc.quantity, svc.quantityLine)
	}
}

func TestValidateAllowsEmptyBody(t *testing.T) {
	svc := &stubService{report: catalog.Report{Removed: []string{"Espresso"}}}
	w := httptest.NewRecorder()

	Validate(svc, nil)(w, authedRequest(http.MethodPost, "/api/v1/cart/validate", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.validateStore != "" {
		t.Fatalf("empty body should fall back to the active store, got %q", svc.validateStore)
	}
}
