// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names used by the reconciliation pipeline.
const (
	PaymentEventsQueue = "payment.events"
	CommissionQueue    = "commission.recalculate"
)

// PaymentEvent is published after a reconciliation outcome commits.  It
// carries enough information for downstream consumers (customer
// messaging, operator dashboards, analytics) without querying the
// primary database.
type PaymentEvent struct {
	Event            string `json:"event"`                 // e.g. payment.confirmed, payment.late
	Audience         string `json:"audience"`              // "customer" or "role"
	CustomerID       uint64 `json:"customer_id,omitempty"` // set for customer events
	Role             string `json:"role,omitempty"`        // set for role events
	BookingReference string `json:"booking_reference,omitempty"`
	BookingType      string `json:"booking_type,omitempty"`
	TransactionCode  string `json:"transaction_code,omitempty"`
	Amount           string `json:"amount,omitempty"`
	Outcome          string `json:"outcome,omitempty"`
	EmittedAt        string `json:"emitted_at"`
}

// CommissionEvent asks the commission worker to recompute partner
// commissions for one camping booking.
type CommissionEvent struct {
	BookingID uint64 `json:"booking_id"`
	Reason    string `json:"reason"`
	EmittedAt string `json:"emitted_at"`
}
