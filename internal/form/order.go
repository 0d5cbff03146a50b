package form

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/pitabwire/mercura/model"
)

// PriceCatalog resolves a product ID to its unit price.
type PriceCatalog interface {
	PriceOf(productID string) (float64, bool)
}

// PriceMap is a PriceCatalog backed by a map.
type PriceMap map[string]float64

// PriceOf returns the price for a product ID.
func (m PriceMap) PriceOf(productID string) (float64, bool) {
	p, ok := m[productID]
	return p, ok
}

// CatalogFromRecords builds a PriceCatalog from product records.
func CatalogFromRecords(products []model.Record) PriceCatalog {
	m := make(PriceMap, len(products))
	for _, p := range products {
		if price, ok := p.Float("price"); ok {
			m[p.String("id")] = price
		}
	}
	return m
}

// NewOrderID generates a display order number in the ORD-<n> form.
func NewOrderID() string {
	return fmt.Sprintf("ORD-%d", rand.Intn(100000))
}

// ParseOrderItems extracts order line items from a submitted value.
func ParseOrderItems(raw any) ([]model.OrderItem, error) {
	list, ok := raw.([]any)
	if !ok {
		if typed, ok := raw.([]model.OrderItem); ok {
			return typed, nil
		}
		return nil, fmt.Errorf("items must be a list")
	}

	items := make([]model.OrderItem, 0, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("items[%d] must be an object", i)
		}
		item := model.OrderItem{}
		if id, ok := m["productId"].(string); ok {
			item.ProductID = id
		}
		switch q := m["quantity"].(type) {
		case float64:
			item.Quantity = int(q)
		case int:
			item.Quantity = q
		}
		if item.ProductID == "" {
			return nil, fmt.Errorf("items[%d]: productId is required", i)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("items[%d]: quantity must be at least 1", i)
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one item is required")
	}
	return items, nil
}

// ComputeOrderTotal sums quantity times unit price over the line items,
// rounded to cents. Items whose product ID does not resolve in the catalog
// contribute nothing and are reported back so callers can surface them.
func ComputeOrderTotal(items []model.OrderItem, catalog PriceCatalog) (float64, []string) {
	var total float64
	var unresolved []string
	for _, item := range items {
		price, ok := catalog.PriceOf(item.ProductID)
		if !ok {
			unresolved = append(unresolved, item.ProductID)
			continue
		}
		total += float64(item.Quantity) * price
	}
	return math.Round(total*100) / 100, unresolved
}

// FinalizeOrder attaches the server-computed order fields: the display
// order number, the total amount derived from the catalog, and the creation
// timestamp. Client-supplied values for these fields are overwritten. The
// returned product IDs did not resolve in the catalog and were priced at
// zero.
func FinalizeOrder(payload model.Record, catalog PriceCatalog, now time.Time) ([]string, error) {
	items, err := ParseOrderItems(payload["items"])
	if err != nil {
		return nil, err
	}

	total, unresolved := ComputeOrderTotal(items, catalog)

	payload["orderId"] = NewOrderID()
	payload["totalAmount"] = total
	payload["createdAt"] = now.UTC().Format(time.RFC3339)
	return unresolved, nil
}
