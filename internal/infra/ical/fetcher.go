package ical

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rentdesk/internal/app/policies"
)

const (
	DefaultUserAgent = "rentdesk-calendar-sync/1.0"
	MaxFeedBytes     = 5 << 20
)

var ErrFeedTooLarge = errors.New("ical: feed exceeds size limit")

// HTTPFetcher downloads feeds with a bounded timeout and body size.
type HTTPFetcher struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{}, Timeout: timeout, UserAgent: DefaultUserAgent, MaxBytes: MaxFeedBytes}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	if strings.HasPrefix(url, "webcal://") {
		url = "https://" + strings.TrimPrefix(url, "webcal://")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ical: build request: %w", err)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ical: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("ical: fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = MaxFeedBytes
	}
	// The body is read fully while the timeout still applies.
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("ical: read %s: %w", url, err)
	}
	if int64(len(body)) > limit {
		return nil, ErrFeedTooLarge
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

var _ policies.FeedFetcher = (*HTTPFetcher)(nil)
