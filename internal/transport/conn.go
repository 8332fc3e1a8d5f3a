package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// conn is one client. The read loop owns roomID; the writer goroutine owns
// the socket's write side. Everything else talks to it through Send.
type conn struct {
	h      *Handler
	ws     *websocket.Conn
	id     string
	out    chan any
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	roomID string
}

func newConn(h *Handler, ws *websocket.Conn, id string) *conn {
	ctx, cancel := context.WithCancel(h.ctx)
	return &conn{
		h:      h,
		ws:     ws,
		id:     id,
		out:    make(chan any, h.cfg.SendQueueSize),
		logger: h.logger.With(zap.String("conn_id", id)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Send queues v without blocking. A full queue drops the frame.
func (c *conn) Send(v any) bool {
	if c.ctx.Err() != nil {
		return false
	}
	select {
	case c.out <- v:
		return true
	default:
		c.logger.Warn("ws_send_dropped", zap.Int("queue", cap(c.out)))
		return false
	}
}

func (c *conn) run() {
	c.logger.Info("ws_connected")
	c.wg.Add(2)
	go c.writeLoop()
	go c.pingLoop()

	err := c.readLoop()

	if c.roomID != "" {
		c.leaveRoom()
	}
	c.cancel()
	c.wg.Wait()

	_ = c.ws.Close(websocket.StatusNormalClosure, "")
	c.logger.Info("ws_disconnected", zap.Int("peer_status", int(websocket.CloseStatus(err))))
}

func (c *conn) readLoop() error {
	for {
		_, data, err := c.ws.Read(c.ctx)
		if err != nil {
			return err
		}
		c.dispatch(data)
	}
}

func (c *conn) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case v := <-c.out:
			ctx, cancel := context.WithTimeout(c.ctx, c.h.cfg.WriteTimeout)
			err := wsjson.Write(ctx, c.ws, v)
			cancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					c.logger.Warn("ws_write_error", zap.Error(err))
				}
				c.cancel()
				return
			}
		}
	}
}

func (c *conn) pingLoop() {
	defer c.wg.Done()
	t := time.NewTicker(c.h.cfg.PingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.ctx, 3*time.Second)
			err := c.ws.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			if failures++; failures >= 2 {
				c.logger.Warn("ws_ping_failed", zap.Error(err))
				c.cancel()
				return
			}
		}
	}
}
