package orders

import (
	"errors"
	"time"

	"github.com/sagra-pos/sagra-pos/internal/catalog"
)

// Status tracks an order through the register/kitchen/delivery workflow.
type Status string

const (
	// StatusInPreparation is the initial status set at confirmation.
	StatusInPreparation Status = "in_preparation"
	// StatusReady means the kitchen finished preparing the order.
	StatusReady Status = "ready"
	// StatusDelivered is terminal.
	StatusDelivered Status = "delivered"
	// StatusCancelled is reachable from in_preparation and ready only.
	StatusCancelled Status = "cancelled"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("record not found")
	ErrEmptyOrder        = errors.New("order must contain at least one item")
)

// manualTransitions is the operator-driven state machine. The automatic
// beverage-only delivery (in_preparation straight to delivered) runs outside
// this table and only through the sweep path.
var manualTransitions = map[Status]map[Status]bool{
	StatusInPreparation: {
		StatusReady:     true,
		StatusCancelled: true,
	},
	StatusReady: {
		StatusDelivered:     true,
		StatusInPreparation: true,
		StatusCancelled:     true,
	},
}

// CanTransition reports whether the operator transition from→to is legal.
func CanTransition(from, to Status) bool {
	next, ok := manualTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Item is a frozen snapshot of catalog data taken at confirmation time; it
// never tracks later catalog edits.
type Item struct {
	RefID      int64            `json:"ref_id"`
	Name       string           `json:"name"`
	PriceCents int64            `json:"price_cents"`
	Quantity   int64            `json:"quantity"`
	Category   catalog.Category `json:"category"`
}

// Order is the persisted record driven through the status state machine by
// the three terminal roles.
type Order struct {
	ID          string     `json:"id"`
	OrderNumber int64      `json:"order_number"`
	Items       []Item     `json:"items"`
	TotalCents  int64      `json:"total_cents"`
	Staff       bool       `json:"staff"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}
