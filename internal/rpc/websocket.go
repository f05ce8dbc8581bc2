// Package rpc exposes a local control-plane for desktop-wallet UIs: a
// websocket hub that bridges internal/exchange's Observer events to
// subscribed browser/desktop clients. It sits outside the trust path —
// nothing it does can affect order matching or the transaction state
// machine, it only watches.
package rpc

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/klingon-exchange/klingon-v2/internal/exchange"
	"github.com/klingon-exchange/klingon-v2/pkg/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventType identifies the kind of payload carried by a WSEvent.
type EventType string

const (
	EventPendingTransaction EventType = "pending_transaction"
	EventPendingExpired     EventType = "pending_expired"
	EventStateChanged       EventType = "state_changed"
	EventCancelled          EventType = "cancelled"
	EventAddressBookEntry   EventType = "address_book_entry"
	EventLogMessage         EventType = "log_message"
)

// WSEvent is one message pushed to subscribed clients. ID is a random
// envelope id independent of any SwapID, since log/address-book events
// carry no swap identity of their own.
type WSEvent struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// WSSubscription is a client's request to narrow the event types it wants.
type WSSubscription struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Events []string `json:"events"`
}

// WSClient is one connected websocket UI.
type WSClient struct {
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[EventType]bool
	mu            sync.RWMutex
	hub           *WSHub
}

// WSHub fans events out to every connected client, matching the exchange
// event bus's own drop-rather-than-block discipline.
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan *WSEvent
	register   chan *WSClient
	unregister chan *WSClient
	log        *logging.Logger
	mu         sync.RWMutex
}

// NewWSHub creates an idle hub; call Run in its own goroutine to activate it.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan *WSEvent, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		log:        logging.GetDefault().Component("rpc"),
	}
}

// Run is the hub's event loop. Blocks until ctx-less caller exits the
// process; there is no Stop, mirroring the teacher's hub lifecycle.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("ui client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug("ui client disconnected", "clients", len(h.clients))

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Error("failed to marshal event", "error", err)
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				client.mu.RLock()
				subscribed := client.subscriptions[event.Type] || len(client.subscriptions) == 0
				client.mu.RUnlock()
				if !subscribed {
					continue
				}
				select {
				case client.send <- data:
				default:
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast enqueues an event for delivery. Drops rather than blocks if the
// hub's internal queue is saturated.
func (h *WSHub) Broadcast(eventType EventType, data interface{}) {
	event := &WSEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("broadcast channel full, dropping event", "type", eventType)
	}
}

// ClientCount reports how many UI clients are currently connected.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades an HTTP request to a websocket UI connection.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}
	client := &WSClient{
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: make(map[EventType]bool),
		hub:           h,
	}
	h.register <- client
	go client.writePump()
	go client.readPump()
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read error", "error", err)
			}
			break
		}
		var sub WSSubscription
		if err := json.Unmarshal(message, &sub); err == nil {
			c.handleSubscription(&sub)
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleSubscription(sub *WSSubscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, eventStr := range sub.Events {
		eventType := EventType(eventStr)
		switch sub.Action {
		case "subscribe":
			c.subscriptions[eventType] = true
		case "unsubscribe":
			delete(c.subscriptions, eventType)
		}
	}
}

// observerBridge implements exchange.Observer by forwarding every event to
// a WSHub. It holds no exchange state of its own.
type observerBridge struct {
	hub *WSHub
}

// NewObserver wraps hub as an exchange.Observer, for Service.Subscribe.
func NewObserver(hub *WSHub) exchange.Observer {
	return observerBridge{hub: hub}
}

func (b observerBridge) PendingTransactionReceived(order *exchange.Order) {
	b.hub.Broadcast(EventPendingTransaction, order)
}

func (b observerBridge) PendingOrderExpired(order *exchange.Order) {
	b.hub.Broadcast(EventPendingExpired, order)
}

func (b observerBridge) TransactionStateChanged(id exchange.SwapID, state exchange.State) {
	b.hub.Broadcast(EventStateChanged, map[string]string{
		"swap_id": id.String(),
		"state":   string(state),
	})
}

func (b observerBridge) TransactionCancelled(id exchange.SwapID, state exchange.State, reason exchange.CancelReason) {
	b.hub.Broadcast(EventCancelled, map[string]string{
		"swap_id": id.String(),
		"state":   string(state),
		"reason":  string(reason),
	})
}

func (b observerBridge) AddressBookEntryReceived(currency, name, address string) {
	b.hub.Broadcast(EventAddressBookEntry, map[string]string{
		"currency": currency,
		"name":     name,
		"address":  address,
	})
}

func (b observerBridge) LogMessage(msg string) {
	b.hub.Broadcast(EventLogMessage, map[string]string{"message": msg})
}
