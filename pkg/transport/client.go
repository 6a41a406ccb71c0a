package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	plog "github.com/plcalarm/plcalarm-go/pkg/log"
)

// Session errors.
var (
	ErrNotConnected     = errors.New("session not connected")
	ErrAlreadyConnected = errors.New("session already connected")
	ErrRequestTimeout   = errors.New("request timed out")
)

// DefaultTargetPort is the publisher's event service port.
const DefaultTargetPort = 110

// ClientConfig configures an AMS/TCP client session.
type ClientConfig struct {
	// Address is the host:port of the publisher's router.
	Address string

	// Target is the publisher's net ID.
	Target NetID

	// TargetPort is the publisher's service port (default: DefaultTargetPort).
	TargetPort uint16

	// Source is this client's net ID.
	Source NetID

	// SourcePort is this client's port.
	SourcePort uint16

	// ConnectTimeout bounds connection establishment (default: 30s).
	ConnectTimeout time.Duration

	// RequestTimeout bounds individual requests (default: 10s).
	RequestTimeout time.Duration

	// MaxFrameSize is the largest accepted frame (default: DefaultMaxFrameSize).
	MaxFrameSize uint32

	// Logger receives operational log records. Nil disables logging.
	Logger *slog.Logger

	// CaptureLogger receives protocol capture events for every frame.
	// Nil disables capture.
	CaptureLogger plog.Logger
}

// Client is the AMS/TCP implementation of Session.
type Client struct {
	config  ClientConfig
	logger  *slog.Logger
	capture plog.Logger

	mu       sync.Mutex
	conn     net.Conn
	closing  bool
	invokeID uint32
	pending  map[uint32]chan frame
	subs     map[uint32]NotificationFunc

	writeMu sync.Mutex

	onConnected    func()
	onDisconnected func()
}

// frame is a received response frame.
type frame struct {
	header  header
	payload []byte
}

// NewClient creates a client session. The session is not connected until
// Connect is called.
func NewClient(config ClientConfig) *Client {
	if config.TargetPort == 0 {
		config.TargetPort = DefaultTargetPort
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 10 * time.Second
	}
	if config.MaxFrameSize == 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	capture := config.CaptureLogger
	if capture == nil {
		capture = plog.NoopLogger{}
	}

	return &Client{
		config:  config,
		logger:  logger,
		capture: capture,
		pending: make(map[uint32]chan frame),
		subs:    make(map[uint32]NotificationFunc),
	}
}

// OnConnected registers the connected callback.
func (c *Client) OnConnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = fn
}

// OnDisconnected registers the disconnected callback.
func (c *Client) OnDisconnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnected = fn
}

// Connect establishes the TCP session and starts the reader.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Address)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyConnected
	}
	c.conn = conn
	c.closing = false
	c.pending = make(map[uint32]chan frame)
	c.subs = make(map[uint32]NotificationFunc)
	onConnected := c.onConnected
	c.mu.Unlock()

	go c.readLoop(conn)

	c.logger.Info("session connected", "address", c.config.Address, "target", c.config.Target.String())
	if onConnected != nil {
		onConnected()
	}
	return nil
}

// Close tears down the session. The disconnected callback is not fired for
// a deliberate close.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.closing = true
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Subscribe requests a device notification from the publisher.
func (c *Client) Subscribe(ctx context.Context, params SubscriptionParams, fn NotificationFunc) (Handle, error) {
	resp, err := c.request(ctx, cmdAddNotification, encodeAddNotificationRequest(params))
	if err != nil {
		return nil, fmt.Errorf("add notification: %w", err)
	}
	if resp.header.ErrorCode != 0 {
		return nil, fmt.Errorf("add notification: %w", &ServiceError{Code: resp.header.ErrorCode})
	}

	handle, err := parseAddNotificationResponse(resp.payload)
	if err != nil {
		return nil, fmt.Errorf("add notification: %w", err)
	}

	c.mu.Lock()
	c.subs[handle] = fn
	c.mu.Unlock()

	c.logger.Debug("notification subscribed", "handle", handle,
		"group", params.IndexGroup, "offset", params.IndexOffset)
	return &clientHandle{client: c, handle: handle}, nil
}

// request sends one command frame and waits for the matching response.
func (c *Client) request(ctx context.Context, cmd uint16, payload []byte) (frame, error) {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return frame{}, ErrNotConnected
	}
	c.invokeID++
	id := c.invokeID
	ch := make(chan frame, 1)
	c.pending[id] = ch
	conn := c.conn
	c.mu.Unlock()

	h := header{
		Target:     c.config.Target,
		TargetPort: c.config.TargetPort,
		Source:     c.config.Source,
		SourcePort: c.config.SourcePort,
		Command:    cmd,
		StateFlags: stateFlagsRequest,
		InvokeID:   id,
	}

	if err := c.writeFrame(conn, h, payload); err != nil {
		c.dropPending(id)
		return frame{}, err
	}

	timer := time.NewTimer(c.config.RequestTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return frame{}, ErrNotConnected
		}
		return resp, nil
	case <-ctx.Done():
		c.dropPending(id)
		return frame{}, ctx.Err()
	case <-timer.C:
		c.dropPending(id)
		return frame{}, ErrRequestTimeout
	}
}

func (c *Client) writeFrame(conn net.Conn, h header, payload []byte) error {
	data := encodeFrame(h, payload)

	c.writeMu.Lock()
	_, err := conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	c.capture.Log(plog.FrameSent(h.Command, h.InvokeID, len(data)))
	return nil
}

func (c *Client) dropPending(id uint32) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop reads frames until the connection fails and dispatches them.
func (c *Client) readLoop(conn net.Conn) {
	for {
		h, payload, err := readFrame(conn, c.config.MaxFrameSize)
		if err != nil {
			c.teardown(conn, err)
			return
		}

		c.capture.Log(plog.FrameReceived(h.Command, h.InvokeID, headerSize+len(payload)))

		switch {
		case h.Command == cmdNotification:
			c.dispatchNotifications(payload)
		case h.StateFlags&1 == 1:
			c.mu.Lock()
			ch := c.pending[h.InvokeID]
			delete(c.pending, h.InvokeID)
			c.mu.Unlock()
			if ch != nil {
				ch <- frame{header: h, payload: payload}
			}
		default:
			c.logger.Debug("unexpected frame", "command", h.Command, "invoke_id", h.InvokeID)
		}
	}
}

// dispatchNotifications delivers every sample addressed to a known handle,
// in wire order. A truncated stream is logged; the readable prefix is still
// delivered.
func (c *Client) dispatchNotifications(payload []byte) {
	err := forEachSample(payload, func(handle uint32, data []byte) {
		c.mu.Lock()
		fn := c.subs[handle]
		c.mu.Unlock()
		if fn != nil {
			fn(data)
		}
	})
	if err != nil {
		c.logger.Warn("malformed notification stream", "error", err)
	}
}

// teardown cleans up after the reader exits.
func (c *Client) teardown(conn net.Conn, cause error) {
	conn.Close()

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	deliberate := c.closing
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.subs = make(map[uint32]NotificationFunc)
	onDisconnected := c.onDisconnected
	c.mu.Unlock()

	if deliberate {
		c.logger.Info("session closed")
		return
	}

	c.logger.Warn("session lost", "error", cause)
	if onDisconnected != nil {
		onDisconnected()
	}
}

// clientHandle is an established notification subscription.
type clientHandle struct {
	client *Client
	handle uint32
}

// Unsubscribe removes the notification from the publisher. The local
// callback registration is dropped regardless of the result.
func (h *clientHandle) Unsubscribe(ctx context.Context) error {
	c := h.client

	c.mu.Lock()
	delete(c.subs, h.handle)
	c.mu.Unlock()

	resp, err := c.request(ctx, cmdDeleteNotification, encodeDeleteNotificationRequest(h.handle))
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if resp.header.ErrorCode != 0 {
		return fmt.Errorf("delete notification: %w", &ServiceError{Code: resp.header.ErrorCode})
	}
	if err := parseDeleteNotificationResponse(resp.payload); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}
