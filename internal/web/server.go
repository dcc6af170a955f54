// Package web exposes the relay over HTTP: a WebSocket endpoint speaking
// the line protocol and a small JSON API describing the relay's state.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	netpprof "net/http/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/greenhouse/internal/config"
	"github.com/codefionn/greenhouse/internal/consts"
	"github.com/codefionn/greenhouse/internal/greenhouse"
	"github.com/codefionn/greenhouse/internal/logger"
	"github.com/codefionn/greenhouse/internal/socketserver"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// NodeView is one node as reported by /api/nodes
type NodeView struct {
	ID        int                   `json:"id"`
	Actuators []greenhouse.Actuator `json:"actuators"`
}

// Status is the body of /api/status
type Status struct {
	Sessions      int `json:"sessions"`
	Unclassified  int `json:"unclassified"`
	Nodes         int `json:"nodes"`
	ControlPanels int `json:"control_panels"`
	Registered    int `json:"registered_nodes"`
}

// Server is the HTTP gateway in front of a relay server
type Server struct {
	relay    *socketserver.Server
	router   *httprouter.Router
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a gateway for relay. Profiling routes are mounted
// under /debug/pprof when cfg.Pprof is set.
func NewServer(cfg config.WebConfig, relay *socketserver.Server) *Server {
	s := &Server{
		relay:  relay,
		router: httprouter.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: logger.Global().WithPrefix("web"),
	}

	s.setupRoutes(cfg.Pprof)
	return s
}

func (s *Server) setupRoutes(pprof bool) {
	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/health", s.handleHealth)

	s.router.GET("/api/status", s.handleStatus)
	s.router.GET("/api/nodes", s.handleNodes)
	s.router.GET("/api/nodes/:id", s.handleNode)

	if pprof {
		s.router.GET("/debug/pprof/*item", handlePprof)
		s.router.POST("/debug/pprof/*item", handlePprof)
	}
}

// Handler returns the gateway's routes
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves in the background
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.NewStdLogger(s.log, slog.LevelWarn),
	}

	s.mu.Lock()
	s.httpServer = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		s.log.Info("Web gateway listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the HTTP server down. Upgraded WebSockets belong to the relay
// and close with it.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), consts.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered with an HTTP error
		s.log.Warn("Failed to upgrade WebSocket: %v", err)
		return
	}

	ws := newWSConn(conn)
	if _, err := s.relay.Attach(ws); err != nil {
		s.log.Warn("Rejecting WebSocket from %s: %v", ws.RemoteAddr(), err)
		ws.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	counts := s.relay.RoleCounts()
	writeJSON(w, http.StatusOK, Status{
		Sessions:      s.relay.SessionCount(),
		Unclassified:  counts[socketserver.RoleUnclassified],
		Nodes:         counts[socketserver.RoleNode],
		ControlPanels: s.relay.Hub().Count(),
		Registered:    s.relay.Registry().Len(),
	})
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	reg := s.relay.Registry()
	snapshot := reg.Snapshot()

	nodes := make([]NodeView, 0, len(snapshot))
	for _, info := range snapshot {
		node, ok := reg.Get(info.NodeID)
		if !ok {
			continue
		}
		nodes = append(nodes, NodeView{ID: node.ID(), Actuators: node.Actuators()})
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := strconv.Atoi(ps.ByName("id"))
	if err != nil {
		http.Error(w, "invalid node id", http.StatusBadRequest)
		return
	}

	node, ok := s.relay.Registry().Get(id)
	if !ok {
		http.Error(w, "unknown node", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, NodeView{ID: node.ID(), Actuators: node.Actuators()})
}

func handlePprof(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	switch strings.TrimPrefix(ps.ByName("item"), "/") {
	case "cmdline":
		netpprof.Cmdline(w, r)
	case "profile":
		netpprof.Profile(w, r)
	case "symbol":
		netpprof.Symbol(w, r)
	case "trace":
		netpprof.Trace(w, r)
	default:
		netpprof.Index(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to encode response: %v", err)
	}
}
