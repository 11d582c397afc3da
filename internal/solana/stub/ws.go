package stub

import (
	"context"
	"sync"

	"curvewatch/internal/solana"
)

// WSClient implements solana.WSClient for testing. Tests push notifications
// with Emit; every active subscription receives each pushed event.
type WSClient struct {
	mu     sync.Mutex
	subs   []chan solana.LogNotification
	closed bool
}

// NewWSClient creates a new stub WebSocket client.
func NewWSClient() *WSClient {
	return &WSClient{}
}

// Compile-time interface check.
var _ solana.WSClient = (*WSClient)(nil)

// SubscribeLogs registers a subscription. The filter is ignored; tests
// control exactly what gets emitted.
func (c *WSClient) SubscribeLogs(_ context.Context, _ solana.LogsFilter) (<-chan solana.LogNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan solana.LogNotification, 256)
	c.subs = append(c.subs, ch)
	return ch, nil
}

// Emit delivers a notification to all active subscriptions.
func (c *WSClient) Emit(n solana.LogNotification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	for _, ch := range c.subs {
		ch <- n
	}
}

// Close closes all subscription channels.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = nil
	return nil
}
