package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/arc-invoice/backend/internal/auth"
	"github.com/arc-invoice/backend/internal/config"
	"github.com/arc-invoice/backend/internal/events"
	"github.com/arc-invoice/backend/internal/metrics"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const wsWriteTimeout = 5 * time.Second

type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// wsClient is one socket of a wallet. invoices, when non-empty, limits the
// events it receives.
type wsClient struct {
	conn     wsConn
	wallet   string
	invoices map[string]bool
	writeMu  sync.Mutex
}

func (c *wsClient) wants(ev events.Event) bool {
	if len(c.invoices) == 0 {
		return true
	}
	return c.invoices[ev.InvoiceID()]
}

func (c *wsClient) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub pushes invoice events to the connected wallets an event names.
type WSHub struct {
	cfg        *config.Config
	subscriber events.Subscriber
	log        *zap.Logger
	mu         sync.RWMutex
	clients    map[string][]*wsClient
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:        cfg,
		subscriber: subscriber,
		log:        log,
		clients:    make(map[string][]*wsClient),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	if err := h.subscriber.Subscribe(ctx, events.StreamInvoice, h.route); err != nil {
		h.log.Error("ws hub subscribe failed", zap.Error(err))
	}
}

func (h *WSHub) route(event events.Event) {
	seen := make(map[string]bool)
	for _, w := range event.Wallets() {
		w = models.NormalizeWallet(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		h.SendToWallet(w, event)
	}
}

// SendToWallet writes event to every socket of wallet. Sockets that fail the
// write are closed; their read loop then unregisters them.
func (h *WSHub) SendToWallet(wallet string, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("ws event marshal failed", zap.String("type", event.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := append([]*wsClient(nil), h.clients[models.NormalizeWallet(wallet)]...)
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.wants(event) {
			continue
		}
		if err := c.write(data); err != nil {
			h.log.Debug("ws write failed", zap.String("wallet", c.wallet), zap.Error(err))
			_ = c.conn.Close()
		}
	}
}

func (h *WSHub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c.wallet] = append(h.clients[c.wallet], c)
	h.mu.Unlock()
	metrics.Get().WSConnections.Inc()
}

func (h *WSHub) unregister(c *wsClient) {
	h.mu.Lock()
	list := h.clients[c.wallet]
	for i, other := range list {
		if other == c {
			h.clients[c.wallet] = append(list[:i], list[i+1:]...)
			metrics.Get().WSConnections.Dec()
			break
		}
	}
	if len(h.clients[c.wallet]) == 0 {
		delete(h.clients, c.wallet)
	}
	h.mu.Unlock()
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// HandleWS authenticates the socket with the token query parameter. An
// optional comma separated invoices parameter narrows the stream.
func (h *WSHub) HandleWS(conn *websocket.Conn) {
	defer conn.Close()

	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		return
	}
	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		return
	}

	client := &wsClient{
		conn:     conn,
		wallet:   models.NormalizeWallet(claims.Wallet),
		invoices: invoiceFilter(conn.Query("invoices")),
	}
	h.register(client)
	defer h.unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func invoiceFilter(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out[id] = true
		}
	}
	return out
}
