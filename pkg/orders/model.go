package orders

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Sternrassler/shop-admin-client/pkg/money"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDelivered:
		return true
	}
	return false
}

// Next returns the status an advance moves to: pending becomes confirmed,
// anything else becomes delivered. Delivered is terminal and reports false.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusDelivered:
		return "", false
	case StatusPending:
		return StatusConfirmed, true
	default:
		return StatusDelivered, true
	}
}

// User is the customer who placed an order.
type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Address is either free text or a structured street/city/state triple.
// The shop stores both shapes; Structured records which one was received.
type Address struct {
	Text string

	Structured bool
	Street     string
	City       string
	State      string
}

const (
	keyStreet       = "Street address"
	keyStreetLegacy = "Stress address"
	keyCity         = "City"
	keyState        = "State"
)

// String renders the address on one line.
func (a Address) String() string {
	if !a.Structured {
		return a.Text
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Street, a.City, a.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*a = Address{Text: text}
		return nil
	}

	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("address must be a string or an object: %w", err)
	}
	if fields == nil {
		*a = Address{}
		return nil
	}

	street, ok := fields[keyStreet]
	if !ok {
		street = fields[keyStreetLegacy]
	}
	*a = Address{
		Structured: true,
		Street:     street,
		City:       fields[keyCity],
		State:      fields[keyState],
	}
	return nil
}

func (a Address) MarshalJSON() ([]byte, error) {
	if !a.Structured {
		return json.Marshal(a.Text)
	}
	return json.Marshal(map[string]string{
		keyStreet: a.Street,
		keyCity:   a.City,
		keyState:  a.State,
	})
}

// ProductRef is the product snapshot embedded in an order line.
type ProductRef struct {
	ID    string      `json:"_id,omitempty"`
	Title string      `json:"title"`
	Price money.Cents `json:"price"`
}

// Line is one product of an order. Product is nil when the product has
// been deleted since the order was placed.
type Line struct {
	Product  *ProductRef `json:"productId"`
	Quantity int         `json:"quantity"`
}

// Total is price times quantity, or zero for a deleted product.
func (l Line) Total() money.Cents {
	if l.Product == nil {
		return 0
	}
	return l.Product.Price.Mul(l.Quantity)
}

// Title returns the product title or a placeholder for deleted products.
func (l Line) Title() string {
	if l.Product == nil {
		return "(deleted product)"
	}
	return l.Product.Title
}

// Order is an order as served by the shop API.
type Order struct {
	ID      string      `json:"_id"`
	User    User        `json:"userId"`
	Address Address     `json:"address"`
	Phone   string      `json:"phone"`
	Amount  money.Cents `json:"amount"`
	Status  Status      `json:"status"`
	Lines   []Line      `json:"products"`
}

// WithStatus returns a copy of o with the status replaced.
func (o Order) WithStatus(s Status) Order {
	o.Status = s
	return o
}
