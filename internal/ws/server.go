package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"roomrelay/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrShuttingDown = errors.New("server is shutting down")

type WsServer struct {
	hub      *Hub
	router   *Router
	upgrader websocket.Upgrader
	cfg      *config.Config

	// admitMu orders readers.Add against the closing flag so Shutdown
	// never waits on a WaitGroup that is still growing.
	admitMu  sync.Mutex
	closing  atomic.Bool
	readers  sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
	swept    chan struct{}
}

func NewWsServer(h *Hub, cfg *config.Config) *WsServer {
	router := NewRouter()
	h.Register(router) // ← all inbound message types configured here

	srv := &WsServer{
		hub:    h,
		router: router,
		cfg:    cfg,
		stop:   make(chan struct{}),
		swept:  make(chan struct{}),
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	go srv.sweep()
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	if s.closing.Load() {
		ginCtx.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrShuttingDown.Error()})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(s.cfg.MaxMessageSize)

	conn := newConn(rawConn, s.cfg.SendBufferSize, s.cfg.WriteWait)
	s.hub.Registry().Add(conn)
	zap.L().Debug("ws.connected", zap.String("conn", conn.ID()), zap.String("addr", ginCtx.Request.RemoteAddr))

	s.admitMu.Lock()
	if s.closing.Load() {
		s.admitMu.Unlock()
		s.hub.Disconnect(conn)
		_ = rawConn.Close()
		return
	}
	s.readers.Add(1)
	s.admitMu.Unlock()

	go conn.writePump()
	go s.reader(rawConn, conn)
}

// Shutdown refuses new connections, drives every live connection through
// the disconnect path and waits for their readers until ctx expires.
func (s *WsServer) Shutdown(ctx context.Context) error {
	s.admitMu.Lock()
	s.closing.Store(true)
	s.admitMu.Unlock()
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.swept

	conns := s.hub.Registry().Connections()
	zap.L().Info("ws.shutdown", zap.Int("connections", len(conns)))
	for _, c := range conns {
		s.hub.Disconnect(c)
	}

	done := make(chan struct{})
	go func() {
		s.readers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		zap.L().Warn("ws.shutdown_timeout", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) reader(rawConn *websocket.Conn, conn *Conn) {
	defer func() {
		s.hub.Disconnect(conn)
		s.readers.Done()
	}()

	_ = rawConn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	rawConn.SetPongHandler(func(string) error {
		return rawConn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, frame, err := rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Debug("ws.read", zap.String("conn", conn.ID()), zap.Error(err))
			}
			return // client closed, errored or missed its pong
		}
		// text and binary frames carry the same JSON envelope
		s.handleFrame(conn, frame)
	}
}

func (s *WsServer) handleFrame(conn *Conn, frame []byte) {
	msgType, err := s.router.dispatch(context.Background(), conn, frame)
	switch {
	case err == nil:
		inboundMessages.WithLabelValues(msgType).Inc()
	case errors.Is(err, ErrUnknownType):
		inboundMessages.WithLabelValues("unknown").Inc()
		zap.L().Warn("ws.unknown_type", zap.String("conn", conn.ID()), zap.String("type", msgType))
	case errors.Is(err, ErrMalformed):
		inboundMessages.WithLabelValues("malformed").Inc()
		zap.L().Warn("ws.malformed", zap.String("conn", conn.ID()), zap.Error(err))
		s.hub.SendError(conn, ErrMalformed.Error())
	default:
		zap.L().Error("ws.dispatch", zap.String("conn", conn.ID()), zap.Error(err))
		s.hub.SendError(conn, err.Error())
	}
}

// sweep pings every live connection each PingInterval. A failed ping closes
// the connection; a missing pong lets its read deadline expire.
func (s *WsServer) sweep() {
	defer close(s.swept)

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			var wg sync.WaitGroup
			for _, c := range s.hub.Registry().Connections() {
				wg.Add(1)
				go func(c *Conn) {
					defer wg.Done()
					if err := c.ping(); err != nil {
						zap.L().Debug("ws.ping_failed", zap.String("conn", c.ID()), zap.Error(err))
						_ = c.raw.Close()
					}
				}(c)
			}
			wg.Wait()
		}
	}
}

// originChecker allows requests without an Origin header (non-browser
// clients) and browser origins on the allow-list; "*" allows all.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	allowAll := false
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
			continue
		}
		if n, ok := normalizeOrigin(o); ok {
			set[n] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if allowAll || origin == "" {
			return true
		}
		n, ok := normalizeOrigin(origin)
		if !ok {
			return false
		}
		_, ok = set[n]
		if !ok {
			zap.L().Warn("ws.origin_blocked", zap.String("origin", origin))
		}
		return ok
	}
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}
