package cart

import (
	cartcore "github.com/vitrineapp/cart-service/internal/cart"
	"github.com/vitrineapp/cart-service/internal/carts"
	"github.com/vitrineapp/cart-service/internal/catalog"
)

type addItemResponse struct {
	Item cartcore.CartItem `json:"item"`
	carts.CartView
}

type allCartsResponse struct {
	Carts         map[string]cartcore.Cart `json:"carts"`
	ActiveStoreID string                   `json:"activeStoreId"`
}

type storeCartResponse struct {
	StoreID string        `json:"storeId"`
	Cart    cartcore.Cart `json:"cart"`
}

type storeCountResponse struct {
	StoreID string `json:"storeId"`
	Count   int    `json:"count"`
}

type validateResponse struct {
	Report catalog.Report `json:"report"`
	carts.CartView
}

func newAllCartsResponse(state cartcore.MultiStoreCart) allCartsResponse {
	if state.Carts == nil {
		state.Carts = map[string]cartcore.Cart{}
	}
	return allCartsResponse{Carts: state.Carts, ActiveStoreID: state.ActiveStoreID}
}
