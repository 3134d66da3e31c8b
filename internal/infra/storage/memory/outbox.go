package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "rentdesk/internal/app/outbox"
	infraoutbox "rentdesk/internal/infra/outbox"
)

type outboxEntry struct {
	record    appoutbox.EventRecord
	state     string
	attempts  int
	next      time.Time
	claimedAt time.Time
	lastError string
}

// OutboxQueue holds committed outbox records until the relay marks them sent.
type OutboxQueue struct {
	mu      sync.Mutex
	entries []*outboxEntry
	index   map[string]*outboxEntry
}

func NewOutboxQueue() *OutboxQueue {
	return &OutboxQueue{index: make(map[string]*outboxEntry)}
}

func (q *OutboxQueue) append(records []appoutbox.EventRecord) {
	if len(records) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now().UTC()
	for _, rec := range records {
		e := &outboxEntry{record: rec, state: infraoutbox.StateNew, next: now}
		q.entries = append(q.entries, e)
		q.index[rec.ID] = e
	}
}

func (q *OutboxQueue) Claim(ctx context.Context, workerID string, limit int) ([]infraoutbox.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now().UTC()
	var out []infraoutbox.Message
	for _, e := range q.entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		due := (e.state == infraoutbox.StateNew || e.state == infraoutbox.StateFailed) && !e.next.After(now)
		expired := e.state == infraoutbox.StateClaimed && now.Sub(e.claimedAt) > infraoutbox.ClaimLease
		if !due && !expired {
			continue
		}
		e.state = infraoutbox.StateClaimed
		e.claimedAt = now
		out = append(out, infraoutbox.Message{
			ID:         e.record.ID,
			Name:       e.record.Name,
			Payload:    e.record.Payload,
			OccurredAt: e.record.OccurredAt,
			Aggregate:  e.record.Aggregate,
			Headers:    e.record.Headers,
			Attempts:   e.attempts,
		})
	}
	return out, nil
}

func (q *OutboxQueue) MarkSent(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.index[id]; ok {
		e.state = infraoutbox.StateSent
	}
	return nil
}

func (q *OutboxQueue) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.index[id]; ok {
		e.state = infraoutbox.StateFailed
		e.attempts++
		e.next = next
		e.lastError = errMsg
	}
	return nil
}

// Records returns every committed record regardless of delivery state.
func (q *OutboxQueue) Records() []appoutbox.EventRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e.record)
	}
	return out
}

// Pending counts records not yet sent.
func (q *OutboxQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, e := range q.entries {
		if e.state != infraoutbox.StateSent {
			n++
		}
	}
	return n
}

var _ infraoutbox.Queue = (*OutboxQueue)(nil)
