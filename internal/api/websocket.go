package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/config"
	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/logging"
	"github.com/MMSchneider/dubswitch-sub000/internal/x32"
)

// wsSendBufferSize is the per-session outbound message buffer size.
const wsSendBufferSize = 256

// sessionMessage is an inbound message from a browser session.
type sessionMessage struct {
	Type    string `json:"type"`
	IP      string `json:"ip,omitempty"`
	Targets []int  `json:"targets,omitempty"`
	Block   *int   `json:"block,omitempty"`
	Target  *int   `json:"target,omitempty"`
	Address string `json:"address,omitempty"`
	Args    []any  `json:"args,omitempty"`
}

// Session inbound message types.
const (
	sessionTypeLoadRouting       = "load_routing"
	sessionTypeSetX32IP          = "set_x32_ip"
	sessionTypeToggleInputs      = "toggle_inputs"
	sessionTypeToggleInputsBlock = "toggle_inputs_block"
	sessionTypeClp               = "clp"
	sessionTypePing              = "ping"
)

// Hub manages session connections and fans engine messages out to all
// of them. It implements the engine's Broadcaster interface.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient represents one connected browser session.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates an empty session hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects all sessions.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a session to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("session connected", "clients", h.ClientCount())
}

// Unregister removes a session from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("session disconnected", "clients", h.ClientCount())
}

// Broadcast sends a message to every connected session. Sessions whose
// buffer is full or that are mid-disconnect are skipped silently.
func (h *Hub) Broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	// Snapshot the client list under the hub lock, then release before
	// sending.
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}
}

// ClientCount returns the number of connected sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all sessions and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the HTTP connection to a session connection,
// pushes the cached snapshot, and schedules a full console re-query so
// the session converges on live state.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}

	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg, s.handleSessionMessage)

	snap := s.engine.Cache().Snapshot()
	client.sendMessage(x32.NewChannelNamesMessage(snap.Names))
	client.sendMessage(x32.NewRoutingMessage(snap.Routing))

	s.engine.Resync()
}

// handleSessionMessage dispatches one inbound session message. Operations
// that need a registered console are dropped with a log line when none is
// known.
func (s *Server) handleSessionMessage(client *WSClient, data []byte) {
	var msg sessionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("invalid session message", "error", err)
		return
	}

	sink := func(out any) { client.sendMessage(out) }

	switch msg.Type {
	case sessionTypePing:
		client.sendMessage(x32.NewPingMessage(s.engine.DeviceIP()))

	case sessionTypeLoadRouting:
		if err := s.engine.LoadRouting(sink); err != nil {
			s.logger.Warn("load_routing failed", "error", err)
		}

	case sessionTypeSetX32IP:
		if err := s.engine.SetDeviceIP(msg.IP); err != nil {
			s.logger.Warn("set_x32_ip failed", "ip", msg.IP, "error", err)
		}

	case sessionTypeToggleInputs:
		var targets [x32.NumRoutingBlocks]int
		switch len(msg.Targets) {
		case 0:
			// No explicit targets means the expansion-card inputs.
			for block := range targets {
				targets[block] = x32.RoutingCardValue(block)
			}
		case x32.NumRoutingBlocks:
			copy(targets[:], msg.Targets)
		default:
			s.logger.Warn("toggle_inputs needs one target per block", "targets", len(msg.Targets))
			return
		}
		if err := s.engine.ToggleInputs(targets, s.hub.Broadcast); err != nil {
			s.logger.Warn("toggle_inputs failed", "error", err)
		}

	case sessionTypeToggleInputsBlock:
		if msg.Block == nil || msg.Target == nil {
			s.logger.Warn("toggle_inputs_block needs block and target")
			return
		}
		if err := s.engine.ToggleBlock(*msg.Block, *msg.Target, s.hub.Broadcast); err != nil {
			s.logger.Warn("toggle_inputs_block failed", "block", *msg.Block, "error", err)
		}

	case sessionTypeClp:
		// Empty args is a read, anything else a fire-and-forget write.
		if len(msg.Args) == 0 {
			if err := s.engine.ReadParam(msg.Address, sink); err != nil {
				s.logger.Warn("clp read failed", "address", msg.Address, "error", err)
			}
			return
		}
		if err := s.engine.WriteParam(msg.Address, msg.Args); err != nil {
			s.logger.Warn("clp write failed", "address", msg.Address, "error", err)
		}

	default:
		s.logger.Warn("unknown session message type", "type", msg.Type)
	}
}

// readPump reads messages from the session connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig, handle func(*WSClient, []byte)) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("session read error", "error", err)
			} else {
				c.hub.logger.Debug("session closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps the session
		// alive even if the browser doesn't answer protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		handle(c, message)
	}
}

// writePump writes messages to the session connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendMessage marshals and queues a message for this session only.
func (c *WSClient) sendMessage(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend attempts to queue data for the session. It silently handles
// closed channels (session disconnected during broadcast) and full
// buffers (slow session).
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Session buffer full, skip
	}
}
