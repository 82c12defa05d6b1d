package cart

import (
	cartcore "github.com/vitrineapp/cart-service/internal/cart"
	"github.com/vitrineapp/cart-service/internal/carts"
)

// OptionPayload mirrors an addon, flavor, or size selection on the wire.
type OptionPayload struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity,omitempty"`
}

// ColorPayload mirrors a color selection on the wire.
type ColorPayload struct {
	ID      string  `json:"id" validate:"required"`
	Name    string  `json:"name"`
	HexCode string  `json:"hexCode"`
	Price   float64 `json:"price"`
}

type AddItemRequest struct {
	ProductID        string          `json:"productId" validate:"required"`
	ProductName      string          `json:"productName" validate:"required"`
	Price            float64         `json:"price" validate:"min=0"`
	PromotionalPrice *float64        `json:"promotionalPrice,omitempty"`
	Quantity         int             `json:"quantity,omitempty"`
	ImageURL         string          `json:"imageUrl,omitempty"`
	StoreID          string          `json:"storeId" validate:"required"`
	StoreName        string          `json:"storeName" validate:"required"`
	StoreSlug        *string         `json:"storeSlug,omitempty"`
	Observation      string          `json:"observation,omitempty"`
	Addons           []OptionPayload `json:"addons,omitempty"`
	Flavors          []OptionPayload `json:"flavors,omitempty"`
	Size             *OptionPayload  `json:"size,omitempty"`
	Color            *ColorPayload   `json:"color,omitempty"`
	Category         string          `json:"category,omitempty"`
}

type SwitchStoreRequest struct {
	StoreID string `json:"storeId" validate:"required"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type UpdateItemRequest struct {
	Observation string           `json:"observation,omitempty"`
	Addons      []OptionPayload  `json:"addons,omitempty"`
	Flavors     *[]OptionPayload `json:"flavors,omitempty"`
}

type ApplyCouponRequest struct {
	Code     string  `json:"code" validate:"required"`
	Discount float64 `json:"discount" validate:"min=0"`
}

type ValidateRequest struct {
	StoreID string `json:"storeId,omitempty"`
}

func toAddItemInput(payload AddItemRequest) cartcore.AddItemInput {
	return cartcore.AddItemInput{
		ProductID:        payload.ProductID,
		ProductName:      payload.ProductName,
		Price:            payload.Price,
		PromotionalPrice: payload.PromotionalPrice,
		Quantity:         payload.Quantity,
		ImageURL:         payload.ImageURL,
		StoreID:          payload.StoreID,
		StoreName:        payload.StoreName,
		StoreSlug:        payload.StoreSlug,
		Observation:      payload.Observation,
		Addons:           toOptions(payload.Addons),
		Flavors:          toOptions(payload.Flavors),
		Size:             toOptionPtr(payload.Size),
		Color:            toColorPtr(payload.Color),
		Category:         payload.Category,
	}
}

func toUpdateItemInput(lineID string, payload UpdateItemRequest) carts.UpdateItemInput {
	input := carts.UpdateItemInput{
		LineID:      lineID,
		Observation: payload.Observation,
		Addons:      toOptions(payload.Addons),
	}
	if payload.Flavors != nil {
		input.Flavors = toOptions(*payload.Flavors)
		input.ReplaceFlavors = true
	}
	return input
}

func toOptions(payloads []OptionPayload) []cartcore.Option {
	if len(payloads) == 0 {
		return nil
	}
	opts := make([]cartcore.Option, 0, len(payloads))
	for _, p := range payloads {
		opts = append(opts, cartcore.Option{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Quantity: p.Quantity,
		})
	}
	return opts
}

func toOptionPtr(p *OptionPayload) *cartcore.Option {
	if p == nil {
		return nil
	}
	return &cartcore.Option{ID: p.ID, Name: p.Name, Price: p.Price, Quantity: p.Quantity}
}

func toColorPtr(p *ColorPayload) *cartcore.Color {
	if p == nil {
		return nil
	}
	return &cartcore.Color{ID: p.ID, Name: p.Name, HexCode: p.HexCode, Price: p.Price}
}
