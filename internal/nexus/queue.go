// Package nexus implements the Messaging Nexus's three-tier priority queue:
// URGENT, STANDARD, and PROACTIVE lanes with FIFO ordering within each tier
// and lowest-priority-first shedding once an incoming event's tier is full.
package nexus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aegis-run/aegis/internal/ingress"
)

type Priority int

const (
	PriorityProactive Priority = iota // lowest: background, self-initiated work
	PriorityStandard
	PriorityUrgent // highest: direct user messages, explicit commands
)

func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityStandard:
		return "standard"
	default:
		return "proactive"
	}
}

// Queue is a bounded three-tier priority queue. Dequeue always drains
// Urgent before Standard before Proactive; within a tier, FIFO holds.
type Queue struct {
	mu            sync.Mutex
	notEmpty      chan struct{}
	lanes         map[Priority][]*ingress.Event
	capacities    map[Priority]int
	submitTimeout time.Duration
}

// NewQueue builds a queue with independent per-tier capacities. Total
// backpressure kicks in once a tier is full: the oldest Proactive (then
// Standard) entry is shed to make room for an incoming Urgent/Standard
// event, never the other way around.
func NewQueue(urgentCap, standardCap, proactiveCap int, submitTimeout time.Duration) *Queue {
	if urgentCap <= 0 {
		urgentCap = 50
	}
	if standardCap <= 0 {
		standardCap = 200
	}
	if proactiveCap <= 0 {
		proactiveCap = 500
	}
	return &Queue{
		notEmpty: make(chan struct{}, 1),
		lanes: map[Priority][]*ingress.Event{
			PriorityUrgent: nil, PriorityStandard: nil, PriorityProactive: nil,
		},
		capacities: map[Priority]int{
			PriorityUrgent: urgentCap, PriorityStandard: standardCap, PriorityProactive: proactiveCap,
		},
		submitTimeout: submitTimeout,
	}
}

// Submit enqueues evt at the given priority. If the target lane is full, the
// oldest entry of the lowest non-empty lane at or below that priority (which
// may be the target lane itself) is shed first.
func (q *Queue) Submit(ctx context.Context, evt *ingress.Event, priority Priority) error {
	q.mu.Lock()
	lane := q.lanes[priority]
	if len(lane) >= q.capacities[priority] {
		if !q.shedLocked(priority) {
			q.mu.Unlock()
			slog.Warn("nexus: queue saturated, dropping event", "id", evt.ID, "priority", priority.String())
			return context.DeadlineExceeded
		}
	}
	q.lanes[priority] = append(q.lanes[priority], evt)
	q.mu.Unlock()

	q.signal()
	slog.Debug("nexus: event enqueued", "id", evt.ID, "priority", priority.String())
	return nil
}

// shedLocked drops the oldest entry from the lowest-priority non-empty lane
// at or below target, making room for target. Caller holds q.mu.
func (q *Queue) shedLocked(target Priority) bool {
	for p := PriorityProactive; p <= target; p++ {
		lane := q.lanes[p]
		if len(lane) == 0 {
			continue
		}
		dropped := lane[0]
		q.lanes[p] = lane[1:]
		slog.Warn("nexus: shedding lowest-priority event to relieve backpressure", "id", dropped.ID, "priority", p.String())
		return true
	}
	return false
}

func (q *Queue) signal() {
	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
}

// Dequeue blocks until an event is available or ctx is done, always
// returning from the highest non-empty priority tier first.
func (q *Queue) Dequeue(ctx context.Context) (*ingress.Event, Priority, error) {
	for {
		q.mu.Lock()
		for p := PriorityUrgent; p >= PriorityProactive; p-- {
			lane := q.lanes[p]
			if len(lane) > 0 {
				evt := lane[0]
				q.lanes[p] = lane[1:]
				q.mu.Unlock()
				return evt, p, nil
			}
		}
		q.mu.Unlock()

		select {
		case <-q.notEmpty:
			continue
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
}

// Len reports the number of queued events per tier.
func (q *Queue) Len() map[Priority]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return map[Priority]int{
		PriorityUrgent:    len(q.lanes[PriorityUrgent]),
		PriorityStandard:  len(q.lanes[PriorityStandard]),
		PriorityProactive: len(q.lanes[PriorityProactive]),
	}
}
