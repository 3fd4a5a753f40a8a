// internal/model/order.go
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AddressNotInformed is the placeholder upstream systems send for pickup
// orders instead of omitting the field. Layouts must treat it as absence.
const AddressNotInformed = "Não informado"

// Order is the caller-supplied receipt/ticket payload. It is read-only for
// this subsystem: composition never mutates it and never persists it.
type Order struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	Status        string          `json:"status,omitempty"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	Address       string          `json:"address,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	ChangeFor     decimal.Decimal `json:"change_for,omitempty"`
	Items         []OrderItem     `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	Total         decimal.Decimal `json:"total"`
	Note          string          `json:"note,omitempty"`
	CourierName   string          `json:"courier_name,omitempty"`
	Urgent        bool            `json:"urgent,omitempty"`

	// Kitchen time estimates, in minutes. Delivery chains onto
	// preparation, not onto the print instant.
	PreparationMinutes int `json:"preparation_minutes,omitempty"`
	DeliveryMinutes    int `json:"delivery_minutes,omitempty"`
}

// OrderItem is one order line.
type OrderItem struct {
	Quantity           int             `json:"quantity"`
	Name               string          `json:"name"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Note               string          `json:"note,omitempty"`
	Flavors            []string        `json:"flavors,omitempty"`
	Size               string          `json:"size,omitempty"`
	AddedIngredients   []string        `json:"added_ingredients,omitempty"`
	RemovedIngredients []string        `json:"removed_ingredients,omitempty"`
}

// HasDeliveryAddress reports whether the order carries a real delivery
// address. Upstream may supply the "not informed" sentinel instead of an
// empty field, so a nil/empty check alone is not enough.
func (o *Order) HasDeliveryAddress() bool {
	addr := strings.TrimSpace(o.Address)
	if addr == "" {
		return false
	}
	return !strings.EqualFold(addr, AddressNotInformed)
}

// ItemCount returns the total quantity across all lines.
func (o *Order) ItemCount() int {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// Subtotal for one line, quantity times unit price.
func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
