// Package inventory owns the mutable catalogue state and derives domain
// events from every interesting mutation.
package inventory

import (
	"errors"
	"time"
)

// OrderStatus enumerates supported order states.
type OrderStatus string

const (
	// OrderStatusPending is the initial state of a new order.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusShipped marks an order handed to delivery.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered marks a completed order.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled marks an abandoned order.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Product is one catalogue entry. Prices are integer cents.
type Product struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	SKU          string `json:"sku"`
	Category     string `json:"category"`
	Quantity     int64  `json:"quantity"`
	ReorderLevel int64  `json:"reorderLevel"`
	Price        int64  `json:"price"`
}

// Order is one customer order header. Totals are integer cents.
type Order struct {
	ID          int64       `json:"id"`
	OrderNumber string      `json:"orderNumber"`
	Status      OrderStatus `json:"status"`
	Total       int64       `json:"total"`
	PlacedAt    time.Time   `json:"timestamp"`
}

// User is an operator account. Passwords are stored as bcrypt hashes.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	FullName     string `json:"fullName,omitempty"`
	Role         string `json:"role"`
}

// ProductInput describes a product to create.
type ProductInput struct {
	Name         string `json:"name" validate:"required"`
	SKU          string `json:"sku" validate:"required"`
	Category     string `json:"category" validate:"required"`
	Quantity     int64  `json:"quantity" validate:"gte=0"`
	ReorderLevel int64  `json:"reorderLevel" validate:"gte=0"`
	Price        int64  `json:"price" validate:"gte=0"`
}

// ProductPatch carries partial field changes; nil means unchanged.
type ProductPatch struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1"`
	SKU          *string `json:"sku,omitempty" validate:"omitempty,min=1"`
	Category     *string `json:"category,omitempty" validate:"omitempty,min=1"`
	Quantity     *int64  `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	ReorderLevel *int64  `json:"reorderLevel,omitempty" validate:"omitempty,gte=0"`
	Price        *int64  `json:"price,omitempty" validate:"omitempty,gte=0"`
}

// OrderInput describes an order to place.
type OrderInput struct {
	OrderNumber string `json:"orderNumber" validate:"required"`
	Status      string `json:"status" validate:"omitempty,oneof=pending shipped delivered cancelled"`
	Total       int64  `json:"total" validate:"gte=0"`
}

// NoticeInput describes a manually recorded activity, e.g. a supplier
// notice posted back by the reorder worker.
type NoticeInput struct {
	Type        string `json:"type" validate:"omitempty,oneof=SUPPLIER_NOTICE LOW_STOCK_ALERT"`
	Description string `json:"description" validate:"required"`
	ProductID   int64  `json:"productId" validate:"gte=0"`
}

// UserInput describes an account to create. The password is hashed
// before it is stored.
type UserInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"fullName"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// ErrNotFound indicates a mutation or read targeting an unknown id.
var ErrNotFound = errors.New("inventory: not found")

// ErrInvalidInput indicates input rejected before any state change.
var ErrInvalidInput = errors.New("inventory: invalid input")

// ErrDuplicateSKU indicates a create colliding with an existing SKU.
var ErrDuplicateSKU = errors.New("inventory: duplicate sku")

// ErrInvalidStatus indicates an unsupported order status value.
var ErrInvalidStatus = errors.New("inventory: invalid order status")
