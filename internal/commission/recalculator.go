// Package commission hands camping bookings to the commission worker
// after a payment settles.  Recalculation itself lives in the partner
// billing service; this side only enqueues the request.
package commission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lehoangnam/glamping-reconciliation/internal/queue"
)

// AMQPRecalculator implements the reconciliation core's
// CommissionRecalculator contract by publishing to the durable
// commission.recalculate queue.
type AMQPRecalculator struct {
	url string
}

// NewAMQPRecalculator returns a recalculator publishing to the given
// broker URL.
func NewAMQPRecalculator(url string) *AMQPRecalculator {
	return &AMQPRecalculator{url: url}
}

// Recalculate enqueues a recalculation request for one camping booking.
// Unlike notifications the error is returned: the caller logs it so a
// missed recalculation is visible in the service log.
func (r *AMQPRecalculator) Recalculate(ctx context.Context, bookingID uint64) error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.CommissionQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	body, err := json.Marshal(queue.CommissionEvent{
		BookingID: bookingID,
		Reason:    "payment_settled",
		EmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.CommissionQueue, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
