package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"roomchat/internal/http/identity"
	"roomchat/internal/http/roomhandler"
	"roomchat/internal/metrics"
	"roomchat/internal/ws"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Options struct {
	ListenPort    uint16
	SessionSecret string
	CORSAllow     []string
}

type httpServer struct {
	opts  Options
	srv   http.Server
	ln    net.Listener
	rooms *roomhandler.Handler
	wsSrv *ws.WsServer
	ctx   context.Context
}

func NewHttpServer(ctx context.Context, opts Options, wsSrv *ws.WsServer, rooms *roomhandler.Handler) *httpServer {
	return &httpServer{
		opts:  opts,
		wsSrv: wsSrv,
		rooms: rooms,
		ctx:   ctx,
	}
}

// Start blocks serving until Dispose is called.
func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.opts.ListenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	h.srv = http.Server{
		Handler:           h.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	zap.L().Info("http_listen", zap.String("addr", listenAddr))

	if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *httpServer) routes() http.Handler {
	routerEngine := gin.New()

	// Swagger UI
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	routerEngine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	routerEngine.GET("/metrics", gin.WrapH(metrics.Handler()))

	// everything below knows who the caller is
	api := routerEngine.Group("/", identity.Sessions(h.opts.SessionSecret), identity.Middleware())

	// websocket endpoints
	api.GET("/ws/room", h.wsSrv.HandleRoom)
	api.GET("/ws/chat", h.wsSrv.HandleChat)

	// REST API
	h.rooms.Register(api)

	return cors.New(cors.Options{
		AllowedOrigins:   h.opts.CORSAllow,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}).Handler(routerEngine)
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in‑flight requests to finish.
func (h *httpServer) Dispose() error {
	// Not derived from h.ctx: that one is already cancelled on shutdown.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err // e.g. active conns didn’t finish in time
	}
	return nil
}
