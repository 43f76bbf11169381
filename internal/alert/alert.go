// Package alert tracks consecutive webhook rejections and raises an
// operator notification when a configured threshold is crossed.  The
// counters live in Redis so alerting behaves consistently across
// instances; with no Redis client the monitor degrades to a no-op.
package alert

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// Failure kinds tracked by the monitor.  Each kind has an independent
// counter: a run of signature failures is a different operational signal
// than a run of malformed payloads.
const (
	KindSignature  = "signature"
	KindValidation = "validation"
)

// RoleNotifier is the subset of the notification dispatcher the monitor
// needs.
type RoleNotifier interface {
	NotifyRole(role string, event string, data map[string]interface{})
}

// Monitor counts consecutive webhook failures per kind.  Any successful
// delivery resets all counters, so only uninterrupted runs of failures
// can trip the threshold.
type Monitor struct {
	rdb       *redis.Client
	notifier  RoleNotifier
	threshold int
}

// NewMonitor builds a Monitor.  rdb may be nil, in which case every
// method is a no-op.  A threshold below 1 falls back to 5.
func NewMonitor(rdb *redis.Client, notifier RoleNotifier, threshold int) *Monitor {
	if threshold < 1 {
		threshold = 5
	}
	return &Monitor{rdb: rdb, notifier: notifier, threshold: threshold}
}

func counterKey(kind string) string { return "webhook:failures:" + kind }

// Failure increments the counter for the given kind and alerts operators
// when the run length reaches the threshold.  The counter is reset after
// alerting so a persistent fault re-alerts every threshold failures
// instead of on each one.
func (m *Monitor) Failure(ctx context.Context, kind string) {
	if m.rdb == nil {
		return
	}
	n, err := m.rdb.Incr(ctx, counterKey(kind)).Result()
	if err != nil {
		log.Printf("alert: failure counter incr: %v", err)
		return
	}
	if n < int64(m.threshold) {
		return
	}
	if m.notifier != nil {
		m.notifier.NotifyRole("ADMIN", "webhook.failures", map[string]interface{}{
			"kind":  kind,
			"count": n,
		})
	}
	if err := m.rdb.Del(ctx, counterKey(kind)).Err(); err != nil {
		log.Printf("alert: failure counter reset: %v", err)
	}
}

// Success clears every failure counter.  Called after any accepted
// delivery.
func (m *Monitor) Success(ctx context.Context) {
	if m.rdb == nil {
		return
	}
	if err := m.rdb.Del(ctx, counterKey(KindSignature), counterKey(KindValidation)).Err(); err != nil {
		log.Printf("alert: failure counter reset: %v", err)
	}
}
