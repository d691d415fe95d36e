// Package dashboard serves a live view of the local record store over HTTP
// and WebSocket.
//
// Connected WebSocket clients receive every sync operation, connectivity
// change and refreshed stats as JSON messages. Plain HTTP endpoints expose
// the same state for polling clients and Prometheus.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jobsheet/jobsheet/internal/connectivity"
	"github.com/jobsheet/jobsheet/internal/metrics"
	"github.com/jobsheet/jobsheet/internal/notice"
	"github.com/jobsheet/jobsheet/internal/record"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeSync carries a finished sync operation
	MessageTypeSync MessageType = "sync"

	// MessageTypeStats carries refreshed collection statistics
	MessageTypeStats MessageType = "stats"

	// MessageTypeConnectivity carries an online/offline transition
	MessageTypeConnectivity MessageType = "connectivity"

	// MessageTypeNotice carries the user-facing notices currently shown
	MessageTypeNotice MessageType = "notice"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ConnectivityData reports the monitor state.
type ConnectivityData struct {
	Online bool `json:"online"`
}

// StatusData is the body of /api/status.
type StatusData struct {
	Online  bool            `json:"online"`
	Busy    bool            `json:"busy"`
	Pending bool            `json:"pending"`
	Records int             `json:"records"`
	Notices []notice.Notice `json:"notices"`
	Clients int             `json:"clients"`
}

// Source is the application state the dashboard reports on.
type Source interface {
	Records() []record.Record
	Busy() bool
	Pending() bool
}

// Server manages WebSocket connections and broadcasts dashboard messages
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	source   Source
	monitor  *connectivity.Monitor
	notices  *notice.Board
	gatherer prometheus.Gatherer
	goal     int
	now      func() time.Time

	// WebSocket client management
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
	// Host to bind (default: 127.0.0.1)
	Host string

	// Port to listen on (default: 8420, 0 picks a free port)
	Port int

	// Source supplies records and sync state (required)
	Source Source

	// Monitor reports connectivity (default: always online)
	Monitor *connectivity.Monitor

	// Notices lists active user notices (optional)
	Notices *notice.Board

	// Gatherer backs /metrics (default: the Prometheus default registry)
	Gatherer prometheus.Gatherer

	// Goal for progress stats (default: record.DefaultGoal)
	Goal int

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host: "127.0.0.1",
		Port: 8420,
		Goal: record.DefaultGoal,
	}
}

// NewServer creates a new dashboard server
func NewServer(config *Config) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Source == nil {
		return nil, fmt.Errorf("dashboard source is required")
	}
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}
	if config.Monitor == nil {
		config.Monitor = connectivity.NewMonitor(true)
	}
	if config.Goal <= 0 {
		config.Goal = record.DefaultGoal
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		source:    config.Source,
		monitor:   config.Monitor,
		notices:   config.Notices,
		gatherer:  config.Gatherer,
		goal:      config.Goal,
		now:       time.Now,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}, nil
}

// Handler returns the HTTP routes. Start serves them; tests may mount them
// on an httptest server directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/records", s.handleRecords)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/status", s.handleStatus)
	if s.gatherer != nil {
		mux.Handle("/metrics", metrics.HandlerFor(s.gatherer))
	} else {
		mux.Handle("/metrics", metrics.Handler())
	}
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// Start begins the HTTP server and the broadcast loop
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

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// BroadcastData marshals data into a message of type t and broadcasts it.
func (s *Server) BroadcastData(t MessageType, data interface{}) {
	msg, err := newMessage(t, data)
	if err != nil {
		s.logger.Printf("Failed to marshal %s message: %v", t, err)
		return
	}
	s.Broadcast(msg)
}

func newMessage(t MessageType, data interface{}) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Timestamp: time.Now(), Data: raw}, nil
}

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

// Stats computes the current collection statistics.
func (s *Server) Stats() record.Stats {
	return record.ComputeStats(s.source.Records(), s.now(), s.goal)
}

// Status reports connectivity, sync state and notices.
func (s *Server) Status() StatusData {
	st := StatusData{
		Online:  s.monitor.IsOnline(),
		Busy:    s.source.Busy(),
		Pending: s.source.Pending(),
		Records: len(s.source.Records()),
		Notices: []notice.Notice{},
		Clients: s.ClientCount(),
	}
	if s.notices != nil {
		st.Notices = s.notices.Active()
	}
	return st
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
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

	// New clients start from a stats snapshot.
	if welcome, err := newMessage(MessageTypeStats, s.Stats()); err == nil {
		data, _ := json.Marshal(welcome)
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		_ = conn.Write(ctx, websocket.MessageText, data)
		cancel()
	}

	go s.readLoop(conn)
}

// readLoop keeps the connection open until the client goes away. Client
// messages are ignored.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

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

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":  "ok",
		"online":  s.monitor.IsOnline(),
		"clients": s.ClientCount(),
	})
}

// handleRecords lists records, filtered by the q and status query
// parameters.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, record.Filter(s.source.Records(), q.Get("q"), q.Get("status")))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Stats())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Status())
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>jobsheet dashboard</title>
</head>
<body>
    <h1>jobsheet dashboard</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Records: <a href="/api/records">/api/records</a></p>
    <p>Stats: <a href="/api/stats">/api/stats</a></p>
    <p>Status: <a href="/api/status">/api/status</a></p>
    <p>Metrics: <a href="/metrics">/metrics</a></p>
</body>
</html>`, r.Host)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
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
