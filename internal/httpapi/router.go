// Package httpapi serves the HTTP surface around the websocket endpoint:
// health checks and live room listings.
package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/park285/cheese-chess-rooms/internal/room"
	"go.uber.org/zap"
)

// RoomLister lists rooms from a shared index.
type RoomLister interface {
	List(ctx context.Context) ([]room.Info, error)
}

type Deps struct {
	Rooms          *room.Registry
	Index          RoomLister  // optional
	WS             http.Handler
	AllowedOrigins []string
	Logger         *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(d.Logger))
	router.Use(cors.New(corsConfig(d.AllowedOrigins)))

	a := &api{d: d}
	router.GET("/health", a.health)
	router.GET("/rooms", a.listRooms)
	router.GET("/rooms/:roomId", a.getRoom)
	if d.WS != nil {
		router.GET("/ws", gin.WrapH(d.WS))
	}
	return router
}

// corsConfig mirrors the websocket origin check: patterns match the
// Origin host, "*" or an empty list allows everything.
func corsConfig(patterns []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(patterns) == 0 || (len(patterns) == 1 && patterns[0] == "*") {
		cfg.AllowOrigins = []string{"*"}
		return cfg
	}
	cfg.AllowOriginFunc = func(origin string) bool {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, p := range patterns {
			if ok, _ := path.Match(strings.ToLower(p), strings.ToLower(u.Host)); ok {
				return true
			}
		}
		return false
	}
	return cfg
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/health" {
			return
		}
		logger.Debug("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

type api struct {
	d Deps
}

func (a *api) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": a.d.Rooms.Len()})
}

func (a *api) listRooms(c *gin.Context) {
	if a.d.Index != nil {
		rooms, err := a.d.Index.List(c.Request.Context())
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"rooms": rooms, "source": "index"})
			return
		}
		a.d.Logger.Warn("room_index_list_error", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": a.d.Rooms.List(), "source": "local"})
}

func (a *api) getRoom(c *gin.Context) {
	rm, ok := a.d.Rooms.Get(c.Param("roomId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, rm.Info())
}
