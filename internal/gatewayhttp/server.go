// Package gatewayhttp exposes the gin-based HTTP surface: the websocket
// upgrade route, a REST mirror of the lobby for clients that only need a
// room list, and a health check.
package gatewayhttp

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"liap-tui-server/internal/config"
	"liap-tui-server/internal/gateway"
	"liap-tui-server/internal/roommgr"
)

// Server wires gin routes to the room manager and gateway connections.
type Server struct {
	mgr    *roommgr.Manager
	cfg    config.Config
	Engine *gin.Engine
}

// New builds the gin engine and registers routes.
func New(mgr *roommgr.Manager, cfg config.Config) *Server {
	s := &Server{mgr: mgr, cfg: cfg, Engine: gin.Default()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Engine.GET("/healthz", s.handleHealthz)
	s.Engine.GET("/ws", s.handleWebSocket)
	s.Engine.GET("/api/rooms", s.handleListRooms)
	s.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListRooms(c *gin.Context) {
	joinable, _ := strconv.ParseBool(c.Query("joinable"))
	c.JSON(http.StatusOK, gin.H{"rooms": s.mgr.ListRooms(joinable)})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := gateway.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	channel := gateway.NewWebSocketChannel(conn)
	session := gateway.NewConnection(channel, s.mgr, s.cfg)
	session.Run()
}
