package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"coursenerd/internal/logging"
)

// DefaultConnectTimeout bounds a connect attempt. The external bridge
// downloads its package on first run, which can take well over a minute
// on a cold cache.
const DefaultConnectTimeout = 2 * time.Minute

// ErrPrimitiveNotFound is returned when a primitive is not advertised by
// the connected bridge.
var ErrPrimitiveNotFound = errors.New("primitive not found")

// ErrNotConnected is returned for calls against a channel whose connect
// attempt has not happened or has failed.
var ErrNotConnected = errors.New("bridge not connected")

// Channel manages the lifecycle of a bridge connection: one transport,
// one connection state, and the set of primitives the bridge advertised
// at connect time.
type Channel struct {
	mu sync.RWMutex

	transport      Transport
	state          ConnState
	connectErr     error
	primitives     map[string]PrimitiveSchema
	connectTimeout time.Duration

	sf singleflight.Group
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithConnectTimeout overrides the default connect timeout.
func WithConnectTimeout(d time.Duration) ChannelOption {
	return func(c *Channel) { c.connectTimeout = d }
}

// NewChannel creates a channel over the given transport. No connection
// is made until Connect or the first Call.
func NewChannel(t Transport, opts ...ChannelOption) *Channel {
	c := &Channel{
		transport:      t,
		state:          StateDisconnected,
		connectTimeout: DefaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Channel) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Primitives returns the names advertised by the connected bridge,
// sorted. Empty when not connected.
func (c *Channel) Primitives() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.primitives))
	for name := range c.primitives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connect brings the channel to Ready. Concurrent callers share a single
// connect attempt; once Ready, Connect is a cheap no-op. A failed
// attempt leaves the channel in Failed and subsequent calls return the
// original error until Disconnect resets the channel.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.RLock()
	switch c.state {
	case StateReady:
		c.mu.RUnlock()
		return nil
	case StateFailed:
		err := c.connectErr
		c.mu.RUnlock()
		return fmt.Errorf("previous connect attempt failed: %w", err)
	}
	c.mu.RUnlock()

	// singleflight collapses concurrent connects into one handshake.
	_, err, _ := c.sf.Do("connect", func() (interface{}, error) {
		return nil, c.doConnect(ctx)
	})
	return err
}

func (c *Channel) doConnect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateReady {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateFailed {
		err := c.connectErr
		c.mu.Unlock()
		return fmt.Errorf("previous connect attempt failed: %w", err)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	logging.Bridge("connecting to browser bridge (timeout %v)", c.connectTimeout)

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	if err := c.transport.Connect(ctx); err != nil {
		c.fail(err)
		return err
	}

	prims, err := c.transport.ListPrimitives(ctx)
	if err != nil {
		_ = c.transport.Disconnect()
		c.fail(err)
		return err
	}

	c.mu.Lock()
	c.primitives = make(map[string]PrimitiveSchema, len(prims))
	for _, p := range prims {
		c.primitives[p.Name] = p
	}
	c.state = StateReady
	c.mu.Unlock()

	logging.Bridge("bridge ready: %d primitives advertised", len(prims))
	return nil
}

func (c *Channel) fail(err error) {
	c.mu.Lock()
	c.state = StateFailed
	c.connectErr = err
	c.mu.Unlock()
	logging.BridgeError("bridge connect failed: %v", err)
}

// Call invokes a primitive, connecting first if necessary. Unknown
// primitive names fail fast with a sample of what is available.
func (c *Channel) Call(ctx context.Context, name string, args map[string]interface{}) (json.RawMessage, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	_, known := c.primitives[name]
	c.mu.RUnlock()
	if !known {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrPrimitiveNotFound, name, c.sampleNames(5))
	}

	timer := logging.StartTimer(logging.CategoryBridge, name)
	result, err := c.transport.CallPrimitive(ctx, name, args)
	timer.StopWithThreshold(15 * time.Second)

	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	if !result.Success {
		return nil, fmt.Errorf("call %s: %s", name, result.Error)
	}
	// The bridge reports tool-level failures in-band: a well-formed
	// response whose payload is flagged isError.
	if resultIsError(result.Output) {
		return nil, fmt.Errorf("call %s: %s", name, ResultText(result.Output))
	}
	return result.Output, nil
}

// sampleNames returns up to n advertised primitive names for error
// messages.
func (c *Channel) sampleNames(n int) []string {
	names := c.Primitives()
	if len(names) > n {
		names = names[:n]
	}
	return names
}

// Disconnect tears the connection down and resets the channel to
// Disconnected. Safe to call repeatedly and from any state; a channel
// stuck in Failed is reset so a later Connect can try again.
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDisconnected
	c.connectErr = nil
	c.primitives = nil
	c.mu.Unlock()

	return c.transport.Disconnect()
}
