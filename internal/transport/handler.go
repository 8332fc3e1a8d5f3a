package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-chess-rooms/internal/msgcat"
	"github.com/park285/cheese-chess-rooms/internal/room"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	defaultSendQueue    = 64
	defaultMaxMessage   = 16 << 10
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

type Config struct {
	// AllowedOrigins are host patterns passed to the websocket handshake.
	// A single "*" disables the origin check.
	AllowedOrigins  []string
	SendQueueSize   int
	MaxMessageBytes int64
	PingInterval    time.Duration
	WriteTimeout    time.Duration
}

// Handler upgrades HTTP requests to websocket connections and routes their
// messages into the room registry.
type Handler struct {
	cfg     Config
	rooms   *room.Registry
	catalog *msgcat.Catalog
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHandler(cfg Config, rooms *room.Registry, catalog *msgcat.Catalog, logger *zap.Logger) *Handler {
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = defaultSendQueue
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaultMaxMessage
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		cfg:     cfg,
		rooms:   rooms,
		catalog: catalog,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (h *Handler) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{CompressionMode: websocket.CompressionNoContextTakeover}
	if len(h.cfg.AllowedOrigins) == 1 && h.cfg.AllowedOrigins[0] == "*" {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = h.cfg.AllowedOrigins
	}
	return opts
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.logger.Warn("ws_accept_error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	ws.SetReadLimit(h.cfg.MaxMessageBytes)

	h.wg.Add(1)
	defer h.wg.Done()
	c := newConn(h, ws, uuid.NewString())
	c.run()
}

// Close disconnects every client and waits for their room departures.
func (h *Handler) Close(ctx context.Context) error {
	h.cancel()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
