package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultVisibilityTimeout bounds how long a dequeued message stays
// invisible before it is considered abandoned and redelivered.
const defaultVisibilityTimeout = 60 * time.Second

type memoryItem struct {
	msg     *Message
	readyAt time.Time
}

type inflightItem struct {
	msg      *Message
	deadline time.Time
}

// MemoryQueue is an in-process Queue with priority bucket scheduling.
// Messages land in one bucket per priority level; Dequeue drains buckets
// weighted round-robin with weight proportional to priority, so high
// priority wins throughput but low priority is never starved.
type MemoryQueue struct {
	mu       sync.Mutex
	name     string
	logger   *zap.Logger
	buckets  [MaxPriority][]memoryItem
	inflight map[string]inflightItem
	schedule []int // bucket visit order, one entry per weight unit
	cursor   int
	vis      time.Duration
}

// NewMemoryQueue creates an in-memory queue with the given name.
func NewMemoryQueue(name string, logger *zap.Logger) *MemoryQueue {
	q := &MemoryQueue{
		name:     name,
		logger:   logger,
		inflight: make(map[string]inflightItem),
		vis:      defaultVisibilityTimeout,
	}

	// Highest priority visited most often: 10,9,...,1 repeated by weight.
	for p := MaxPriority; p >= MinPriority; p-- {
		for i := 0; i < p; i++ {
			q.schedule = append(q.schedule, p-1)
		}
	}

	return q
}

// Enqueue adds a message; delay > 0 keeps it invisible until ready.
func (q *MemoryQueue) Enqueue(ctx context.Context, msg *Message, delay time.Duration) error {
	p := msg.Priority
	if p < MinPriority {
		p = MinPriority
	}
	if p > MaxPriority {
		p = MaxPriority
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.buckets[p-1] = append(q.buckets[p-1], memoryItem{
		msg:     msg,
		readyAt: time.Now().Add(delay),
	})

	q.logger.Debug("message enqueued",
		zap.String("queue", q.name),
		zap.String("notification_id", msg.NotificationID.String()),
		zap.Int("priority", p),
		zap.Duration("delay", delay),
	)

	return nil
}

// Dequeue returns the next ready message and a receipt, or (nil, "", nil)
// when nothing is ready.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Message, string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reapExpired()

	now := time.Now()
	for scanned := 0; scanned < len(q.schedule); scanned++ {
		bucket := q.schedule[q.cursor]
		q.cursor = (q.cursor + 1) % len(q.schedule)

		if msg := q.takeReady(bucket, now); msg != nil {
			receipt := uuid.NewString()
			q.inflight[receipt] = inflightItem{msg: msg, deadline: now.Add(q.vis)}
			return msg, receipt, nil
		}
	}

	return nil, "", nil
}

// takeReady pops the first ready item from a bucket, preserving FIFO order
// within the priority level.
func (q *MemoryQueue) takeReady(bucket int, now time.Time) *Message {
	items := q.buckets[bucket]
	for i, item := range items {
		if item.readyAt.After(now) {
			continue
		}
		q.buckets[bucket] = append(items[:i], items[i+1:]...)
		return item.msg
	}
	return nil
}

// reapExpired requeues in-flight messages whose visibility timeout passed
// (worker crashed before ack). Called with the lock held.
func (q *MemoryQueue) reapExpired() {
	now := time.Now()
	for receipt, item := range q.inflight {
		if now.Before(item.deadline) {
			continue
		}
		delete(q.inflight, receipt)
		p := clampPriority(item.msg.Priority)
		q.buckets[p-1] = append(q.buckets[p-1], memoryItem{msg: item.msg, readyAt: now})
		q.logger.Warn("redelivering abandoned message",
			zap.String("queue", q.name),
			zap.String("notification_id", item.msg.NotificationID.String()),
		)
	}
}

// Ack removes a delivered message permanently.
func (q *MemoryQueue) Ack(ctx context.Context, receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inflight[receipt]; !ok {
		return fmt.Errorf("unknown receipt: %s", receipt)
	}
	delete(q.inflight, receipt)
	return nil
}

// Nack makes an in-flight message visible again immediately.
func (q *MemoryQueue) Nack(ctx context.Context, receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.inflight[receipt]
	if !ok {
		return fmt.Errorf("unknown receipt: %s", receipt)
	}
	delete(q.inflight, receipt)

	p := clampPriority(item.msg.Priority)
	q.buckets[p-1] = append(q.buckets[p-1], memoryItem{msg: item.msg, readyAt: time.Now()})
	return nil
}

// Depth returns the number of messages waiting (not in flight).
func (q *MemoryQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	total := 0
	for _, b := range q.buckets {
		total += len(b)
	}
	return total
}

func clampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}
