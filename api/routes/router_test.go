package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitrineapp/cart-service/internal/cart"
	"github.com/vitrineapp/cart-service/internal/carts"
	"github.com/vitrineapp/cart-service/internal/cartsync"
	"github.com/vitrineapp/cart-service/internal/catalog"
	pkgauth "github.com/vitrineapp/cart-service/pkg/auth"
	"github.com/vitrineapp/cart-service/pkg/config"
	"github.com/vitrineapp/cart-service/pkg/db/models"
	"github.com/vitrineapp/cart-service/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type memorySnapshots struct{}

func (memorySnapshots) ListByUser(context.Context, string) ([]cartsync.Snapshot, error) {
	return nil, nil
}
func (memorySnapshots) Upsert(context.Context, cartsync.Snapshot) error { return nil }
func (memorySnapshots) Delete(context.Context, string, string) error    { return nil }

type emptyCatalog struct{}

func (emptyCatalog) ListByStore(context.Context, string) ([]models.Product, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "development", Port: "8080"},
		JWT: config.JWTConfig{Secret: "test-secret", Issuer: "vitrine-test", ExpirationMinutes: 15},
		Sync: config.SyncConfig{
			DebounceInterval: 50 * time.Millisecond,
			QuarantineTTL:    100 * time.Millisecond,
			DeleteRetryDelay: 10 * time.Millisecond,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, registry *prometheus.Registry) http.Handler {
	t.Helper()

	coord, err := cartsync.NewCoordinator(memorySnapshots{}, nil, nil, cfg.Sync.DebounceInterval)
	if err != nil {
		t.Fatalf("coordinator init: %v", err)
	}
	validator, err := catalog.NewValidator(emptyCatalog{}, nil, nil)
	if err != nil {
		t.Fatalf("validator init: %v", err)
	}
	svc, err := carts.NewService(func(string) cart.StateStore { return cart.NewMemoryStateStore() }, coord, validator, nil, nil, cfg.Sync)
	if err != nil {
		t.Fatalf("service init: %v", err)
	}
	t.Cleanup(svc.Close)

	return NewRouter(cfg, nil, stubPinger{}, stubPinger{}, svc, registry)
}

func bearerFor(t *testing.T, cfg *config.Config, userID string) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), userID)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthEndpointsAreOpen(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("liveness should not require auth, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("readiness with healthy pingers should be 200, got %d", w.Code)
	}
}

func TestCartRoutesRequireAuth(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a garbage token, got %d", w.Code)
	}
}

func TestAddThenFetchRoundTrip(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, nil)
	token := bearerFor(t, cfg, "user-1")

	body, _ := json.Marshal(map[string]any{
		"productId":   "p1",
		"productName": "Espresso",
		"price":       10.0,
		"quantity":    2,
		"storeId":     "s1",
		"storeName":   "Cafe",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(body))
	req.Header.Set("Authorization", token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("add item failed: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("fetch cart failed: %d %s", w.Code, w.Body.String())
	}

	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	data := envelope.Data.(map[string]any)
	if data["activeStoreId"] != "s1" {
		t.Fatalf("expected s1 active after add, got %v", data["activeStoreId"])
	}
	if data["total"] != 20.0 {
		t.Fatalf("expected total 20, got %v", data["total"])
	}
}

func TestMetricsEndpointWiredWhenRegistryPresent(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, prometheus.NewRegistry())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics endpoint should serve, got %d", w.Code)
	}
}
