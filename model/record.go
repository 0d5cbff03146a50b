package model

import "time"

// Record is a single entity fetched from or written to the upstream
// collection API. Field names follow the upstream JSON shape.
type Record map[string]any

// Derived field names attached by the enricher. These are presentation-only
// and must be stripped before any record is written back upstream.
const (
	FieldCSAT     = "csat"
	FieldProgress = "progress"
	FieldTrend    = "trend"
)

// DerivedFields lists every ephemeral field the enricher may attach.
var DerivedFields = []string{FieldCSAT, FieldProgress, FieldTrend}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// StripDerived returns a copy of the record with all derived presentation
// fields removed.
func (r Record) StripDerived() Record {
	out := r.Clone()
	for _, f := range DerivedFields {
		delete(out, f)
	}
	return out
}

// String returns the named field as a string, or "" if absent or not a string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Float returns the named field as a float64 and whether it was numeric.
func (r Record) Float(field string) (float64, bool) {
	switch v := r[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Product active status values.
const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
)

// Order payment status values.
const (
	PaymentStatusPaid     = "Paid"
	PaymentStatusPending  = "Pending"
	PaymentStatusRefunded = "Refunded"
)

// Order delivery status values.
const (
	DeliveryStatusPending   = "Pending"
	DeliveryStatusShipped   = "Shipped"
	DeliveryStatusDelivered = "Delivered"
	DeliveryStatusCanceled  = "Canceled"
)

// Product is the typed shape of a product record after ingress coercion.
type Product struct {
	ID           string  `json:"id,omitempty"`
	ProductName  string  `json:"productName"`
	SKU          string  `json:"sku"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	Stock        int     `json:"stock"`
	ActiveStatus string  `json:"activeStatus"`
	Description  string  `json:"description,omitempty"`
	ProductImage string  `json:"productImage,omitempty"`
}

// OrderItem is a single line of an order.
type OrderItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Order is the typed shape of an order record after ingress coercion.
type Order struct {
	ID               string      `json:"id,omitempty"`
	OrderID          string      `json:"orderId"`
	ClientName       string      `json:"clientName"`
	DeliveryAddress  string      `json:"deliveryAddress"`
	PaymentStatus    string      `json:"paymentStatus"`
	DeliveryStatus   string      `json:"deliveryStatus"`
	ExpectedDelivery string      `json:"expectedDelivery"`
	Items            []OrderItem `json:"items"`
	TotalAmount      float64     `json:"totalAmount"`
	CreatedAt        time.Time   `json:"createdAt"`
}
