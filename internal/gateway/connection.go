package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/SessionOS/backend/internal/logging"
	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// connEventBuffer bounds the per-connection event channel.
const connEventBuffer = 64

// wireMessage is the kernel protocol envelope on the websocket channel.
type wireMessage struct {
	Header struct {
		MsgType string `json:"msg_type"`
		Session string `json:"session"`
	} `json:"header"`
	Channel string          `json:"channel"`
	Content json.RawMessage `json:"content"`
}

// statusContent is the payload of iopub status messages.
type statusContent struct {
	ExecutionState string `json:"execution_state"`
}

// Connection is a live attachment to a remote session: REST operations plus
// a websocket stream of kernel messages. It implements session.Connection.
type Connection struct {
	client *Client
	log    *logging.Logger

	mu         sync.Mutex
	id         string
	path       string
	name       string
	typ        string
	kernel     *types.KernelInfo
	status     types.KernelStatus
	connStatus types.ConnectionStatus
	ws         *websocket.Conn
	wsGen      int
	disposed   bool

	events       chan types.ConnectionEvent
	eventsClosed bool
}

// newConnection builds a connection from a session model and opens the
// kernel channel when the session has a kernel.
func newConnection(ctx context.Context, client *Client, sm sessionModel) (*Connection, error) {
	c := &Connection{
		client:     client,
		log:        client.log.With(zap.String("session_id", sm.ID)),
		id:         sm.ID,
		path:       sm.Path,
		name:       sm.Name,
		typ:        sm.Type,
		status:     types.StatusUnknown,
		connStatus: types.ConnConnecting,
		events:     make(chan types.ConnectionEvent, connEventBuffer),
	}
	if sm.Kernel != nil {
		c.kernel = &types.KernelInfo{ID: sm.Kernel.ID, Name: sm.Kernel.Name}
		if sm.Kernel.ExecutionState != "" {
			c.status = types.KernelStatus(sm.Kernel.ExecutionState)
		}
		if err := c.openChannel(ctx, sm.Kernel.ID); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Accessors.

func (c *Connection) ID() string   { c.mu.Lock(); defer c.mu.Unlock(); return c.id }
func (c *Connection) Path() string { c.mu.Lock(); defer c.mu.Unlock(); return c.path }
func (c *Connection) Name() string { c.mu.Lock(); defer c.mu.Unlock(); return c.name }
func (c *Connection) Type() string { c.mu.Lock(); defer c.mu.Unlock(); return c.typ }

func (c *Connection) Kernel() *types.KernelInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kernel
}

func (c *Connection) KernelStatus() types.KernelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Connection) ConnectionStatus() types.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connStatus
}

// Events yields kernel notifications until disposal, then closes.
func (c *Connection) Events() <-chan types.ConnectionEvent {
	return c.events
}

// ChangeKernel swaps the kernel in place, preserving session identity. The
// websocket channel is rebound to the new kernel before the change event is
// delivered.
func (c *Connection) ChangeKernel(ctx context.Context, identity types.KernelIdentity) error {
	c.mu.Lock()
	old := c.kernel
	c.mu.Unlock()

	sm, err := c.client.changeSessionKernel(ctx, c.ID(), identity)
	if err != nil {
		return err
	}
	if sm.Kernel == nil {
		return fmt.Errorf("gateway returned session %s without a kernel", sm.ID)
	}

	c.closeChannel()
	if err := c.openChannel(ctx, sm.Kernel.ID); err != nil {
		return err
	}

	c.mu.Lock()
	c.kernel = &types.KernelInfo{ID: sm.Kernel.ID, Name: sm.Kernel.Name}
	c.status = types.StatusStarting
	kernel := c.kernel
	var props []types.PropertyChange
	if sm.Path != "" && sm.Path != c.path {
		c.path = sm.Path
		props = append(props, types.PropertyChange{Property: types.PropPath, Value: sm.Path})
	}
	if sm.Name != "" && sm.Name != c.name {
		c.name = sm.Name
		props = append(props, types.PropertyChange{Property: types.PropName, Value: sm.Name})
	}
	c.mu.Unlock()

	for _, p := range props {
		c.deliver(types.ConnectionEvent{Kind: types.EventProperty, Property: p})
	}
	c.deliver(types.ConnectionEvent{
		Kind:   types.EventKernel,
		Kernel: types.KernelChange{Old: old, New: kernel},
	})
	c.deliver(types.ConnectionEvent{Kind: types.EventStatus, Status: types.StatusStarting})
	return nil
}

// RestartKernel restarts the current kernel on the gateway.
func (c *Connection) RestartKernel(ctx context.Context) error {
	c.mu.Lock()
	kernel := c.kernel
	c.mu.Unlock()
	if kernel == nil {
		return fmt.Errorf("session %s has no kernel", c.ID())
	}

	if err := c.client.restartKernel(ctx, kernel.ID); err != nil {
		return err
	}
	c.mu.Lock()
	c.status = types.StatusRestarting
	c.mu.Unlock()
	c.deliver(types.ConnectionEvent{Kind: types.EventStatus, Status: types.StatusRestarting})
	return nil
}

// Shutdown terminates the remote session.
func (c *Connection) Shutdown(ctx context.Context) error {
	return c.client.deleteSession(ctx, c.ID())
}

// Dispose releases the websocket and closes the event channel. Idempotent.
func (c *Connection) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		ws.Close()
	} else {
		// No reader goroutine owns the channel; close it here.
		c.closeEvents()
	}
}

func (c *Connection) closeEvents() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.eventsClosed {
		c.eventsClosed = true
		close(c.events)
	}
}

// openChannel dials the kernel's websocket channel and starts the reader.
func (c *Connection) openChannel(ctx context.Context, kernelID string) error {
	url := fmt.Sprintf("%s/api/kernels/%s/channels?session_id=%s",
		c.client.wsURL, kernelID, uuid.NewString())

	header := map[string][]string{}
	if c.client.token != "" {
		header["Authorization"] = []string{"token " + c.client.token}
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("failed to dial kernel channel: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.wsGen++
	gen := c.wsGen
	c.connStatus = types.ConnConnected
	c.mu.Unlock()

	c.deliver(types.ConnectionEvent{Kind: types.EventConnectionStatus, ConnectionStatus: types.ConnConnected})
	go c.readLoop(ws, gen)
	return nil
}

// closeChannel tears down the current websocket without disposing the
// connection, for kernel rebinds.
func (c *Connection) closeChannel() {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	if ws != nil {
		ws.Close()
	}
}

// readLoop decodes kernel messages until the socket closes. The reader that
// observes disposal closes the event channel.
func (c *Connection) readLoop(ws *websocket.Conn, gen int) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			disposed := c.disposed
			stale := gen != c.wsGen
			if !disposed && !stale {
				c.connStatus = types.ConnDisconnected
			}
			c.mu.Unlock()

			if disposed {
				c.closeEvents()
				return
			}
			if stale {
				// Replaced by a kernel rebind; the new reader owns
				// the channel now.
				return
			}
			c.log.Warn("kernel channel closed", zap.Error(err))
			c.deliver(types.ConnectionEvent{
				Kind:             types.EventConnectionStatus,
				ConnectionStatus: types.ConnDisconnected,
			})
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				// The remote side shut the session down underneath us.
				c.deliver(types.ConnectionEvent{Kind: types.EventDisposed})
				c.closeEvents()
			}
			return
		}
		c.handleWire(data)
	}
}

// handleWire maps one websocket frame onto connection events.
func (c *Connection) handleWire(data []byte) {
	var msg wireMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		c.log.Debug("dropping undecodable kernel message", zap.Error(err))
		return
	}

	m := types.Message{
		Channel: msg.Channel,
		Type:    msg.Header.MsgType,
		Content: []byte(msg.Content),
	}

	switch msg.Channel {
	case "iopub":
		if msg.Header.MsgType == "status" {
			var sc statusContent
			if err := sonic.Unmarshal(msg.Content, &sc); err == nil && sc.ExecutionState != "" {
				status := types.KernelStatus(sc.ExecutionState)
				c.mu.Lock()
				c.status = status
				c.mu.Unlock()
				c.deliver(types.ConnectionEvent{Kind: types.EventStatus, Status: status})
			}
		}
		c.deliver(types.ConnectionEvent{Kind: types.EventIOPub, Message: m})
	default:
		// Nothing awaits replies on this client; everything else is
		// surfaced as unhandled.
		c.deliver(types.ConnectionEvent{Kind: types.EventUnhandled, Message: m})
	}
}

// deliver enqueues an event unless the channel is already closed, evicting
// the oldest pending event when a slow consumer fills the buffer.
func (c *Connection) deliver(ev types.ConnectionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eventsClosed {
		return
	}
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case <-c.events:
		default:
		}
	}
}
