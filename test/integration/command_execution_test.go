package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/pitabwire/mercura/model"
)

func orderValues() map[string]any {
	return map[string]any{
		"clientName":       "Acme Corp",
		"deliveryAddress":  "1 Main St, Springfield",
		"paymentStatus":    "Paid",
		"deliveryStatus":   "Pending",
		"expectedDelivery": "2025-05-01",
		"items": []any{
			map[string]any{"productId": "p1", "quantity": 2},
			map[string]any{"productId": "p3", "quantity": 1},
		},
	}
}

func TestCreateOrderComputesTotals(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", ProductFixtures())
	h.Backend.Seed("/order", []map[string]any{})

	var resp model.CommandResponse
	h.AssertJSON(t, h.POST("/api/forms/order-create/submit", map[string]any{
		"values": orderValues(),
	}), http.StatusCreated, &resp)

	if !resp.Success {
		t.Fatalf("response = %+v", resp)
	}
	// 2 x 499.00 + 1 x 39.00, priced from the live catalog.
	if resp.Result["totalAmount"] != 1037.0 {
		t.Errorf("totalAmount = %v", resp.Result["totalAmount"])
	}
	orderID, _ := resp.Result["orderId"].(string)
	if !strings.HasPrefix(orderID, "ORD-") {
		t.Errorf("orderId = %q", orderID)
	}
	if resp.Result["createdAt"] == "" || resp.Result["createdAt"] == nil {
		t.Error("missing createdAt")
	}

	// The record reached the upstream collection.
	stored := h.Backend.Records("/order")
	if len(stored) != 1 || stored[0]["clientName"] != "Acme Corp" {
		t.Errorf("stored = %v", stored)
	}
}

func TestCreateIgnoresClientSuppliedTotal(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", ProductFixtures())
	h.Backend.Seed("/order", []map[string]any{})

	values := orderValues()
	values["totalAmount"] = 0.01

	var resp model.CommandResponse
	h.AssertJSON(t, h.POST("/api/forms/order-create/submit", map[string]any{
		"values": values,
	}), http.StatusCreated, &resp)

	if resp.Result["totalAmount"] != 1037.0 {
		t.Errorf("totalAmount = %v", resp.Result["totalAmount"])
	}
}

func TestCreateUnknownProductPricedAtZero(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", ProductFixtures())
	h.Backend.Seed("/order", []map[string]any{})

	values := orderValues()
	values["items"] = []any{
		map[string]any{"productId": "p1", "quantity": 2},
		map[string]any{"productId": "ghost", "quantity": 4},
	}

	var resp model.CommandResponse
	h.AssertJSON(t, h.POST("/api/forms/order-create/submit", map[string]any{
		"values": values,
	}), http.StatusCreated, &resp)

	// The unresolvable line contributes nothing: 2 x 499.00 only.
	if resp.Result["totalAmount"] != 998.0 {
		t.Errorf("totalAmount = %v, want 998.0", resp.Result["totalAmount"])
	}
	h.Backend.AssertCalled(t, http.MethodPost, "/order", 1)
}

func TestCreateValidationAggregatesErrors(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/order", []map[string]any{})

	resp := h.POST("/api/forms/order-create/submit", map[string]any{
		"values": map[string]any{"clientName": "Acme Corp"},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	env := h.ErrorOf(resp)
	if env.Code != model.ErrValidationError {
		t.Fatalf("code = %q", env.Code)
	}
	// Every missing required field is reported in one round trip.
	if len(env.Details) < 4 {
		t.Errorf("details = %+v", env.Details)
	}
	h.Backend.AssertCalled(t, http.MethodPost, "/order", 0)
}

func TestCreateInvalidatesListCache(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", ProductFixtures())
	h.Backend.Seed("/order", OrderFixtures())

	// Prime the cache, then confirm it serves the repeat.
	h.AssertStatus(t, h.GET("/api/pages/orders-list/data"), http.StatusOK)
	h.AssertStatus(t, h.GET("/api/pages/orders-list/data"), http.StatusOK)
	h.Backend.AssertCalled(t, http.MethodGet, "/order", 1)

	h.AssertStatus(t, h.POST("/api/forms/order-create/submit", map[string]any{
		"values": orderValues(),
	}), http.StatusCreated)

	// The next listing misses the cache and sees the new record.
	var data model.DataResponse
	h.AssertJSON(t, h.GET("/api/pages/orders-list/data"), http.StatusOK, &data)
	h.Backend.AssertCalled(t, http.MethodGet, "/order", 2)
	if data.Data.TotalCount != 3 {
		t.Errorf("total = %d", data.Data.TotalCount)
	}
}

func TestCreateIdempotentReplay(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", ProductFixtures())
	h.Backend.Seed("/order", []map[string]any{})

	body := map[string]any{"values": orderValues()}
	headers := map[string]string{"X-Idempotency-Key": "create-42"}

	var first, second model.CommandResponse
	h.AssertJSON(t, h.POSTWithHeaders("/api/forms/order-create/submit", body, headers), http.StatusCreated, &first)
	h.AssertJSON(t, h.POSTWithHeaders("/api/forms/order-create/submit", body, headers), http.StatusCreated, &second)

	h.Backend.AssertCalled(t, http.MethodPost, "/order", 1)
	if second.Result["orderId"] != first.Result["orderId"] {
		t.Errorf("replay orderId = %v, want %v", second.Result["orderId"], first.Result["orderId"])
	}
}

func TestCreateIdempotencyKeyConflict(t *testing.T) {
	h := NewHarness(t)
	h.Backend.Seed("/product", ProductFixtures())
	h.Backend.Seed("/order", []map[string]any{})

	headers := map[string]string{"X-Idempotency-Key": "create-7"}
	h.AssertStatus(t, h.POSTWithHeaders("/api/forms/order-create/submit",
		map[string]any{"values": orderValues()}, headers), http.StatusCreated)

	changed := orderValues()
	changed["clientName"] = "Different Client"
	resp := h.POSTWithHeaders("/api/forms/order-create/submit",
		map[string]any{"values": changed}, headers)

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if env := h.ErrorOf(resp); env.Code != model.ErrConflict {
		t.Errorf("code = %q", env.Code)
	}
	h.Backend.AssertCalled(t, http.MethodPost, "/order", 1)
}

func TestSubmitUnknownForm(t *testing.T) {
	h := NewHarness(t)

	resp := h.POST("/api/forms/not-a-form/submit", map[string]any{"values": map[string]any{}})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
