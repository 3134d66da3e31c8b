package outbox

import (
	"context"
	"log/slog"
	"sync"
)

// LogProducer writes envelopes to the logger instead of a broker. It keeps the
// last published messages for inspection.
type LogProducer struct {
	Logger *slog.Logger
	Keep   int

	mu        sync.Mutex
	published []Published
}

type Published struct {
	Topic   string
	Key     string
	Payload []byte
	Headers map[string]string
}

func (p *LogProducer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "event published", "topic", topic, "key", key, "bytes", len(payload))
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, Published{Topic: topic, Key: key, Payload: payload, Headers: headers})
	keep := p.Keep
	if keep <= 0 {
		keep = 100
	}
	if len(p.published) > keep {
		p.published = append([]Published(nil), p.published[len(p.published)-keep:]...)
	}
	return nil
}

func (p *LogProducer) Published() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Published, len(p.published))
	copy(out, p.published)
	return out
}

var _ Producer = (*LogProducer)(nil)
