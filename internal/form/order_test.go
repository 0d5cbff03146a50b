package form

import (
	"strings"
	"testing"
	"time"

	"github.com/pitabwire/mercura/model"
)

func catalog() PriceCatalog {
	return PriceMap{
		"p1": 12.50,
		"p2": 25.00,
		"p3": 0.99,
	}
}

func TestComputeOrderTotal(t *testing.T) {
	items := []model.OrderItem{
		{ProductID: "p1", Quantity: 2}, // 25.00
		{ProductID: "p2", Quantity: 1}, // 25.00
	}
	total, unresolved := ComputeOrderTotal(items, catalog())
	if len(unresolved) != 0 {
		t.Fatalf("unresolved = %v", unresolved)
	}
	if total != 50.00 {
		t.Errorf("total = %v, want 50.00", total)
	}
}

func TestComputeOrderTotal_roundsToCents(t *testing.T) {
	items := []model.OrderItem{{ProductID: "p3", Quantity: 3}} // 2.97
	total, unresolved := ComputeOrderTotal(items, catalog())
	if len(unresolved) != 0 {
		t.Fatalf("unresolved = %v", unresolved)
	}
	if total != 2.97 {
		t.Errorf("total = %v, want 2.97", total)
	}
}

func TestComputeOrderTotal_unknownProductPricedAtZero(t *testing.T) {
	items := []model.OrderItem{
		{ProductID: "p2", Quantity: 2}, // 50.00
		{ProductID: "ghost", Quantity: 5},
	}
	total, unresolved := ComputeOrderTotal(items, catalog())
	if total != 50.00 {
		t.Errorf("total = %v, want 50.00 with the unknown line at zero", total)
	}
	if len(unresolved) != 1 || unresolved[0] != "ghost" {
		t.Errorf("unresolved = %v, want [ghost]", unresolved)
	}
}

func TestParseOrderItems(t *testing.T) {
	raw := []any{
		map[string]any{"productId": "p1", "quantity": float64(2)},
		map[string]any{"productId": "p2", "quantity": float64(1)},
	}
	items, err := ParseOrderItems(raw)
	if err != nil {
		t.Fatalf("ParseOrderItems() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].ProductID != "p1" || items[0].Quantity != 2 {
		t.Errorf("items[0] = %+v", items[0])
	}
}

func TestParseOrderItems_rejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		raw  any
	}{
		{"not a list", "items"},
		{"empty list", []any{}},
		{"missing product", []any{map[string]any{"quantity": float64(1)}}},
		{"zero quantity", []any{map[string]any{"productId": "p1", "quantity": float64(0)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseOrderItems(tc.raw); err == nil {
				t.Errorf("ParseOrderItems(%v) should fail", tc.raw)
			}
		})
	}
}

func TestFinalizeOrder(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	payload := model.Record{
		"clientName":      "Acme Corp",
		"deliveryAddress": "1 Main St",
		"items": []any{
			map[string]any{"productId": "p1", "quantity": float64(2)},
			map[string]any{"productId": "p2", "quantity": float64(1)},
		},
		// Client-supplied values for computed fields must be overwritten.
		"totalAmount": 1.00,
		"orderId":     "ORD-HACKED",
	}

	unresolved, err := FinalizeOrder(payload, catalog(), now)
	if err != nil {
		t.Fatalf("FinalizeOrder() error = %v", err)
	}
	if len(unresolved) != 0 {
		t.Fatalf("unresolved = %v", unresolved)
	}

	if payload["totalAmount"] != 50.00 {
		t.Errorf("totalAmount = %v, want 50.00", payload["totalAmount"])
	}
	if payload["createdAt"] != "2025-03-01T10:30:00Z" {
		t.Errorf("createdAt = %v", payload["createdAt"])
	}
	orderID, _ := payload["orderId"].(string)
	if !strings.HasPrefix(orderID, "ORD-") || orderID == "ORD-HACKED" {
		t.Errorf("orderId = %q, want fresh ORD-<n>", orderID)
	}
}

func TestNewOrderID(t *testing.T) {
	id := NewOrderID()
	if !strings.HasPrefix(id, "ORD-") {
		t.Errorf("NewOrderID() = %q, want ORD- prefix", id)
	}
}
