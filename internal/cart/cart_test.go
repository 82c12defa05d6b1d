package cart

import (
	"testing"

	"github.com/shopspring/decimal"
)

func lineFor(storeID, productID, observation string, quantity int, price float64) CartItem {
	return CartItem{
		ID:          LineID(storeID, productID, observation, nil, nil, nil, nil),
		ProductID:   productID,
		ProductName: productID,
		Price:       price,
		Quantity:    quantity,
		StoreID:     storeID,
		StoreName:   storeID,
		Observation: observation,
	}
}

func TestAddLineMergesSameDerivedID(t *testing.T) {
	t.Parallel()

	c := Cart{StoreID: "s1"}
	c = AddLine(c, lineFor("s1", "p1", "", 2, 10))
	c = AddLine(c, lineFor("s1", "p1", "", 3, 10))

	if len(c.Items) != 1 {
		t.Fatalf("expected a single merged line, got %d", len(c.Items))
	}
	if c.Items[0].Quantity != 5 {
		t.Fatalf("expected accumulated quantity 5, got %d", c.Items[0].Quantity)
	}
}

func TestAddLineAppendsOnObservationDifference(t *testing.T) {
	t.Parallel()

	c := Cart{StoreID: "s1"}
	c = AddLine(c, lineFor("s1", "p1", "", 1, 10))
	c = AddLine(c, lineFor("s1", "p1", "no cheese", 1, 10))

	if len(c.Items) != 2 {
		t.Fatalf("expected two distinct lines, got %d", len(c.Items))
	}
}

func TestAddLineDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	original := Cart{StoreID: "s1", Items: []CartItem{lineFor("s1", "p1", "", 1, 10)}}
	_ = AddLine(original, lineFor("s1", "p1", "", 4, 10))

	if original.Items[0].Quantity != 1 {
		t.Fatalf("AddLine mutated its input, quantity=%d", original.Items[0].Quantity)
	}
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	t.Parallel()

	item := lineFor("s1", "p1", "", 2, 10)
	c := Cart{StoreID: "s1", Items: []CartItem{item}}

	c = SetQuantity(c, item.ID, 0)
	if !c.IsEmpty() {
		t.Fatalf("expected empty cart after zero quantity, got %d lines", len(c.Items))
	}
}

func TestUpdateLineKeepsID(t *testing.T) {
	t.Parallel()

	item := lineFor("s1", "p1", "", 1, 10)
	c := Cart{StoreID: "s1", Items: []CartItem{item}}

	c = UpdateLine(c, item.ID, "well done", []Option{{ID: "a1", Price: 2}}, nil, false)

	got := c.Items[0]
	if got.ID != item.ID {
		t.Fatal("editing customization must not re-key the line")
	}
	if got.Observation != "well done" || len(got.Addons) != 1 {
		t.Fatalf("customization not replaced: %+v", got)
	}
}

func TestUpdateLineFlavorsOnlyWhenRequested(t *testing.T) {
	t.Parallel()

	item := lineFor("s1", "p1", "", 1, 10)
	item.Flavors = []Option{{ID: "f1"}}
	c := Cart{StoreID: "s1", Items: []CartItem{item}}

	c = UpdateLine(c, item.ID, "obs", nil, nil, false)
	if len(c.Items[0].Flavors) != 1 {
		t.Fatal("flavors replaced without being requested")
	}

	c = UpdateLine(c, item.ID, "obs", nil, nil, true)
	if len(c.Items[0].Flavors) != 0 {
		t.Fatal("flavors should have been replaced")
	}
}

func TestTotalSumsLines(t *testing.T) {
	t.Parallel()

	c := Cart{StoreID: "s1", Items: []CartItem{
		lineFor("s1", "p1", "", 2, 10),
		lineFor("s1", "p2", "", 1, 5.5),
	}}

	if got := Total(c); !got.Equal(decimal.NewFromFloat(25.5)) {
		t.Fatalf("expected total 25.5, got %s", got)
	}
}

func TestItemCountSumsQuantities(t *testing.T) {
	t.Parallel()

	c := Cart{StoreID: "s1", Items: []CartItem{
		lineFor("s1", "p1", "", 2, 10),
		lineFor("s1", "p2", "", 3, 5),
	}}

	if got := ItemCount(c); got != 5 {
		t.Fatalf("expected count 5, got %d", got)
	}
}

func TestFilterToStoreDropsForeignItems(t *testing.T) {
	t.Parallel()

	c := Cart{StoreID: "s1", Items: []CartItem{
		lineFor("s1", "p1", "", 1, 10),
		lineFor("s2", "p9", "", 1, 10),
	}}

	filtered := FilterToStore(c, "s1")
	if len(filtered.Items) != 1 || filtered.Items[0].StoreID != "s1" {
		t.Fatalf("cross-store items must be silently filtered: %+v", filtered.Items)
	}
}

func TestDecodeStateCorruptPayload(t *testing.T) {
	t.Parallel()

	state, err := DecodeState("{not json")
	if err == nil {
		t.Fatal("expected decode error for corrupt payload")
	}
	if len(state.Carts) != 0 || state.ActiveStoreID != "" {
		t.Fatalf("corrupt payload must yield an empty state, got %+v", state)
	}
}

func TestEncodeDecodeStateRoundTrip(t *testing.T) {
	t.Parallel()

	state := NewMultiStoreCart()
	state.Carts["s1"] = Cart{StoreID: "s1", StoreName: "Bella", Items: []CartItem{lineFor("s1", "p1", "", 2, 10)}}
	state.ActiveStoreID = "s1"

	raw, err := EncodeState(state)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeState(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.ActiveStoreID != "s1" || len(decoded.Carts["s1"].Items) != 1 {
		t.Fatalf("round trip lost data: %+v", decoded)
	}
}
