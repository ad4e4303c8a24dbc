package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"roomrelay/internal/config"
	"roomrelay/internal/http/roomhandler"
	"roomrelay/internal/ws"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
)

type httpServer struct {
	listenPort uint16
	srv        http.Server
	ln         net.Listener
	wsSrv      *ws.WsServer
	handler    http.Handler
}

func NewHttpServer(cfg *config.Config, wsSrv *ws.WsServer, reg *ws.Registry) *httpServer {
	h := &httpServer{
		listenPort: cfg.HttpServerPort,
		wsSrv:      wsSrv,
	}
	h.handler = newHandler(cfg, wsSrv, reg)
	h.srv.Handler = h.handler
	h.srv.ReadHeaderTimeout = 10 * time.Second
	return h
}

// newHandler builds the gin engine wrapped in the CORS layer.
func newHandler(cfg *config.Config, wsSrv *ws.WsServer, reg *ws.Registry) http.Handler {
	routerEngine := gin.New()

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	// Static files for the chat client
	routerEngine.StaticFile("/", "public/index.html")

	// websocket endpoint
	routerEngine.GET("/ws", wsSrv.Handle)

	// Read-only views: /health, /api/rooms
	roomhandler.New(reg).Register(routerEngine)

	routerEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}).Handler(routerEngine)
}

// Handler is the full HTTP surface, for embedding in tests.
func (h *httpServer) Handler() http.Handler { return h.handler }

// Start listens on the configured port and serves until Dispose is called.
// It returns nil after a clean shutdown.
func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	zap.L().Info("http_listening", zap.String("addr", listenAddr))

	if err := h.srv.Serve(h.ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose vacates every room through the WebSocket server, then shuts the
// HTTP listener down. Both steps share ctx's deadline.
func (h *httpServer) Dispose(ctx context.Context) error {
	wsErr := h.wsSrv.Shutdown(ctx)
	if wsErr != nil {
		zap.L().Error("ws_dispose", zap.Error(wsErr))
	}

	// Ask the server to shut down.
	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err
	}

	// If the context's deadline expired, log it for observability.
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
	}
	return wsErr
}
