// Package stream maintains the websocket connection to the feed: dial,
// subscribe, read loop, application-level keepalive pings, and reconnect
// with exponential backoff. Message interpretation is the caller's business;
// the handler receives raw message text.
package stream

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/bgpkit/ris-live-go/internal/logging"
	"github.com/bgpkit/ris-live-go/internal/metrics"
	"github.com/bgpkit/ris-live-go/internal/subscribe"
)

const pingInterval = 30 * time.Second

// Client is a reconnecting feed connection.
type Client struct {
	url    string
	dialer *websocket.Dialer
	log    *logging.Logger

	mu          sync.Mutex
	connected   bool
	lastMessage time.Time
}

// New builds a client for the given feed base URL. The client name is added
// as the query parameter the feed uses to identify subscribers.
func New(baseURL, clientName string, log *logging.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url: %w", err)
	}
	q := u.Query()
	q.Set("client", clientName)
	u.RawQuery = q.Encode()

	return &Client{
		url:    u.String(),
		dialer: &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		log:    log,
	}, nil
}

// Connected reports whether the websocket is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LastMessage returns the arrival time of the most recent message.
func (c *Client) LastMessage() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMessage
}

// Run connects, subscribes, and calls handle for every message until ctx is
// canceled. Dropped connections are re-dialed with exponential backoff and
// the subscription is replayed on each reconnect.
func (c *Client) Run(ctx context.Context, sub subscribe.Subscription, handle func(raw string)) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 2 * time.Minute
	bo.MaxElapsedTime = 0 // keep trying until canceled

	for {
		err := c.runOnce(ctx, sub, handle, bo)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := bo.NextBackOff()
		c.log.Warnw("feed connection lost, reconnecting", "err", err, "wait", wait)
		metrics.ReconnectsTotal.Inc()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) runOnce(ctx context.Context, sub subscribe.Subscription, handle func(raw string), bo *backoff.ExponentialBackOff) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	msg, err := sub.Message()
	if err != nil {
		return fmt.Errorf("compose subscription: %w", err)
	}

	var writeMu sync.Mutex
	writeText := func(data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	if err := writeText(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.log.Infow("subscribed to feed", "url", c.url)
	bo.Reset()
	c.setConnected(true)
	defer c.setConnected(false)

	// Closing the connection is the only way to interrupt a blocked read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	go func() {
		for {
			select {
			case <-ping.C:
				if err := writeText(subscribe.Ping()); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if kind != websocket.TextMessage || len(data) == 0 {
			continue
		}
		c.touch()
		handle(string(data))
	}
}

func (c *Client) setConnected(up bool) {
	c.mu.Lock()
	c.connected = up
	c.mu.Unlock()
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastMessage = time.Now()
	c.mu.Unlock()
}
