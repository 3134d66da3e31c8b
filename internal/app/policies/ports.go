package policies

import (
	"context"
	"io"
	"time"
)

// FeedFetcher downloads an external iCal feed. Callers close the returned body.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Locker serializes work on a key across processes. The returned release func
// is safe to call once the lock has expired.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// Clock is injected so handlers can be tested at fixed instants.
type Clock func() time.Time

func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
