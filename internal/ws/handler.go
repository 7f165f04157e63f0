package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/SessionOS/backend/internal/logging"
	"github.com/GriffinCanCode/SessionOS/backend/internal/monitoring"
	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// ErrNoClient is returned when a dialog is requested with no UI attached.
var ErrNoClient = errors.New("no UI client connected")

// outbound is the envelope sent to UI clients.
type outbound struct {
	Type       string               `json:"type"`
	Path       string               `json:"path,omitempty"`
	Event      string               `json:"event,omitempty"`
	Payload    interface{}          `json:"payload,omitempty"`
	DialogID   string               `json:"dialog_id,omitempty"`
	List       *types.SelectionList `json:"list,omitempty"`
	Cancelable bool                 `json:"cancelable,omitempty"`
	Kernel     string               `json:"kernel,omitempty"`
	Title      string               `json:"title,omitempty"`
	Message    string               `json:"message,omitempty"`
}

// inbound is a message from a UI client.
type inbound struct {
	Type     string                `json:"type"`
	DialogID string                `json:"dialog_id,omitempty"`
	Accepted bool                  `json:"accepted,omitempty"`
	Identity *types.KernelIdentity `json:"identity,omitempty"`
}

// dialogReply resolves one outstanding dialog.
type dialogReply struct {
	accepted bool
	identity *types.KernelIdentity
}

// Hub manages UI client connections. It implements the session package's
// Prompter, Confirmer and Reporter collaborators: dialogs are pushed to
// clients with a correlation id and the first reply wins.
type Hub struct {
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	clients map[*client]bool
	pending map[string]chan dialogReply
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub.
func NewHub(log *logging.Logger, metrics *monitoring.Metrics) *Hub {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Hub{
		log:     log.Named("ws"),
		metrics: metrics,
		clients: make(map[*client]bool),
		pending: make(map[string]chan dialogReply),
	}
}

// HandleConnection upgrades an HTTP request and serves the client until it
// disconnects.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, 64)}
	h.mu.Lock()
	h.clients[cl] = true
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}

	go h.writeLoop(cl)
	h.readLoop(cl)

	h.mu.Lock()
	delete(h.clients, cl)
	h.mu.Unlock()
	close(cl.send)
	conn.Close()
	if h.metrics != nil {
		h.metrics.WSConnections.Dec()
	}
}

func (h *Hub) writeLoop(cl *client) {
	for data := range cl.send {
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (h *Hub) readLoop(cl *client) {
	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.log.Debug("undecodable client message", zap.Error(err))
			continue
		}
		if h.metrics != nil {
			h.metrics.WSMessages.WithLabelValues("in", msg.Type).Inc()
		}

		switch msg.Type {
		case "dialog_reply":
			h.resolveDialog(msg)
		case "ping":
			h.sendTo(cl, outbound{Type: "pong"})
		default:
			h.log.Debug("unknown client message type", zap.String("type", msg.Type))
		}
	}
}

// SelectKernel presents the selection list to the UI and blocks until a
// reply arrives or the context cancels (manager disposal cancels it too).
func (h *Hub) SelectKernel(ctx context.Context, list types.SelectionList, cancelable bool) (types.SelectionResult, error) {
	id := uuid.NewString()
	reply, err := h.openDialog(id, outbound{
		Type:       "select_kernel",
		DialogID:   id,
		List:       &list,
		Cancelable: cancelable,
	})
	if err != nil {
		return types.SelectionResult{}, err
	}
	defer h.closeDialog(id)

	select {
	case r := <-reply:
		return types.SelectionResult{Accepted: r.accepted, Identity: r.identity}, nil
	case <-ctx.Done():
		return types.SelectionResult{}, ctx.Err()
	}
}

// ConfirmRestart asks the UI to approve restarting kernelName.
func (h *Hub) ConfirmRestart(ctx context.Context, kernelName string) (bool, error) {
	id := uuid.NewString()
	reply, err := h.openDialog(id, outbound{
		Type:     "confirm_restart",
		DialogID: id,
		Kernel:   kernelName,
	})
	if err != nil {
		return false, err
	}
	defer h.closeDialog(id)

	select {
	case r := <-reply:
		return r.accepted, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// ReportError pushes a diagnostic to every connected client, fire-and-forget.
func (h *Hub) ReportError(title string, err error) {
	h.broadcast(outbound{Type: "error", Title: title, Message: err.Error()})
}

// BroadcastEvent publishes one session event to every connected client.
func (h *Hub) BroadcastEvent(path, event string, payload interface{}) {
	h.broadcast(outbound{Type: "session_event", Path: path, Event: event, Payload: payload})
}

func (h *Hub) openDialog(id string, msg outbound) (chan dialogReply, error) {
	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return nil, ErrNoClient
	}
	reply := make(chan dialogReply, 1)
	h.pending[id] = reply
	h.mu.Unlock()

	h.broadcast(msg)
	return reply, nil
}

func (h *Hub) closeDialog(id string) {
	h.mu.Lock()
	delete(h.pending, id)
	h.mu.Unlock()
}

func (h *Hub) resolveDialog(msg inbound) {
	h.mu.Lock()
	reply, ok := h.pending[msg.DialogID]
	if ok {
		delete(h.pending, msg.DialogID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	reply <- dialogReply{accepted: msg.Accepted, identity: msg.Identity}
}

func (h *Hub) broadcast(msg outbound) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		h.log.Error("failed to encode outbound message", zap.Error(err))
		return
	}
	if h.metrics != nil {
		h.metrics.WSMessages.WithLabelValues("out", msg.Type).Inc()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- data:
		default:
			// Slow client; drop rather than stall the hub.
		}
	}
}

func (h *Hub) sendTo(cl *client, msg outbound) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case cl.send <- data:
	default:
	}
}
