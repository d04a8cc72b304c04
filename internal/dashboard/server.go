// Package dashboard serves upstream queries over HTTP and pushes extraction
// events to WebSocket clients.
//
// Endpoints:
//   - GET /upstream?service=S[&reduce=true]  dependents of S as JSON
//   - GET /dependencies?service=S            direct dependencies of S
//   - GET /facts                             the full fact table as JSON
//   - GET /health                            status and client count
//   - GET /ws                                WebSocket event stream
//
// Every query request runs its own session against the store.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/svcdeps/svcdeps/internal/fact"
	"github.com/svcdeps/svcdeps/internal/graph"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeExtractComplete indicates an extraction run finished
	MessageTypeExtractComplete MessageType = "extract_complete"

	// MessageTypeFactFound carries one extracted fact, whether or not it
	// was already stored
	MessageTypeFactFound MessageType = "fact_found"

	// MessageTypeStats carries fact table statistics
	MessageTypeStats MessageType = "stats"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// StatsData contains fact table statistics
type StatsData struct {
	Facts    int `json:"facts"`
	Services int `json:"services"`
}

// Querier answers the queries served over HTTP. *query.Service implements it.
type Querier interface {
	ResolveUpstream(ctx context.Context, target string, mode graph.Mode) ([]graph.Dependent, error)
	DirectDependencies(ctx context.Context, service string) ([]string, error)
	ListAllFacts(ctx context.Context) ([]fact.Fact, error)
}

// Server manages HTTP endpoints and WebSocket broadcasts
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	queries  Querier

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8080, 0 picks a free port)
	Port int

	// Queries answers /upstream and /facts (required)
	Queries Querier

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// NewServer creates a new dashboard server
func NewServer(config *Config) (*Server, error) {
	if config == nil || config.Queries == nil {
		return nil, fmt.Errorf("dashboard requires a query source")
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		queries:   config.Queries,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}, nil
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/facts", s.handleFacts)
	mux.HandleFunc("/upstream", s.handleUpstream)
	mux.HandleFunc("/dependencies", s.handleDependencies)
	return mux
}

// Start begins serving in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()

	s.logger.Println("Dashboard server stopped")
	return nil
}

// Broadcast queues a message for all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop delivers queued messages to every client
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades the connection and sends current stats
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	welcome := Message{Type: MessageTypeStats, Timestamp: time.Now()}
	if stats, err := s.stats(r.Context()); err == nil {
		welcome.Data, _ = json.Marshal(stats)
	}
	welcomeData, _ := json.Marshal(welcome)
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, welcomeData)
	cancel()

	go s.readLoop(conn)
}

// readLoop keeps the connection open until the client leaves
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

func (s *Server) stats(ctx context.Context) (StatsData, error) {
	facts, err := s.queries.ListAllFacts(ctx)
	if err != nil {
		return StatsData{}, err
	}
	services := make(map[string]struct{})
	for _, f := range facts {
		services[f.Service] = struct{}{}
	}
	return StatsData{Facts: len(facts), Services: len(services)}, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	facts, err := s.queries.ListAllFacts(r.Context())
	if err != nil {
		s.logger.Printf("Failed to list facts: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"facts": facts})
}

func (s *Server) handleUpstream(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("service")
	if target == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "service is required"})
		return
	}

	mode := graph.ModeRaw
	if v := r.URL.Query().Get("reduce"); v != "" {
		reduce, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reduce must be a boolean"})
			return
		}
		if reduce {
			mode = graph.ModeImmediate
		}
	}

	deps, err := s.queries.ResolveUpstream(r.Context(), target, mode)
	if err != nil {
		s.logger.Printf("Failed to resolve upstream of %s: %v", target, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"target":   target,
		"mode":     mode.String(),
		"upstream": deps,
	})
}

func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")
	if service == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "service is required"})
		return
	}

	deps, err := s.queries.DirectDependencies(r.Context(), service)
	if err != nil {
		s.logger.Printf("Failed to list dependencies of %s: %v", service, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":      service,
		"dependencies": deps,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
