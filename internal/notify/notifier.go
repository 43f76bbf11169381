// Package notify publishes customer and operator notifications to the
// message broker.  Publishing is fire-and-forget: the reconciliation
// outcome has already committed by the time a notification is emitted, so
// failures here are logged and dropped rather than surfaced.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lehoangnam/glamping-reconciliation/internal/queue"
)

// AMQPNotifier implements the reconciliation core's Notifier contract on
// top of the payment.events queue.
type AMQPNotifier struct {
	url string
}

// NewAMQPNotifier returns a notifier publishing to the given broker URL.
func NewAMQPNotifier(url string) *AMQPNotifier {
	return &AMQPNotifier{url: url}
}

// NotifyCustomer emits a customer-facing event, e.g. payment.confirmed.
func (n *AMQPNotifier) NotifyCustomer(customerID uint64, event string, data map[string]interface{}) {
	ev := queue.PaymentEvent{
		Event:      event,
		Audience:   "customer",
		CustomerID: customerID,
		EmittedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	fillFromData(&ev, data)
	go n.publish(ev)
}

// NotifyRole emits an operator-facing event for everyone holding the role.
func (n *AMQPNotifier) NotifyRole(role string, event string, data map[string]interface{}) {
	ev := queue.PaymentEvent{
		Event:     event,
		Audience:  "role",
		Role:      role,
		EmittedAt: time.Now().UTC().Format(time.RFC3339),
	}
	fillFromData(&ev, data)
	go n.publish(ev)
}

// fillFromData copies the well-known payload keys the reconciliation core
// attaches to every outcome.  Unknown keys are ignored.
func fillFromData(ev *queue.PaymentEvent, data map[string]interface{}) {
	get := func(key string) string {
		if v, ok := data[key].(string); ok {
			return v
		}
		return ""
	}
	ev.BookingReference = get("booking_reference")
	ev.BookingType = get("booking_type")
	ev.TransactionCode = get("transaction_code")
	ev.Amount = get("amount")
	ev.Outcome = get("outcome")
}

// publish sends one event to the durable payment.events queue.  A fresh
// connection per message keeps the publisher robust against stale
// channels at the cost of throughput, which is fine for this volume.
func (n *AMQPNotifier) publish(ev queue.PaymentEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := amqp.Dial(n.url)
	if err != nil {
		log.Printf("notify: dial failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("notify: channel open failed: %v", err)
		return
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.PaymentEventsQueue, true, false, false, false, nil); err != nil {
		log.Printf("notify: queue declare failed: %v", err)
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notify: marshal event failed: %v", err)
		return
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.PaymentEventsQueue, false, false, pub); err != nil {
		log.Printf("notify: publish failed: %v", err)
	}
}
