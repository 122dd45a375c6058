// Package dashboard serves mirror status over HTTP and pushes sync events
// to WebSocket clients.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mdmirror/mdmirror/internal/logging"
	"github.com/mdmirror/mdmirror/internal/mirror/schema"
	msync "github.com/mdmirror/mdmirror/internal/mirror/sync"
)

// MessageType names the kind of event a Message carries.
type MessageType string

const (
	// MessageTypeFileSynced is sent after every per-file sync attempt
	MessageTypeFileSynced MessageType = "file_synced"

	// MessageTypeSyncComplete is sent after a full sync
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeStatus carries a full status snapshot
	MessageTypeStatus MessageType = "status"
)

// Message is one event pushed to WebSocket clients. Data holds the JSON
// of a sync.FileOutcome, sync.Result or sync.Status depending on Type.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SyncLogReader reads the audit trail. *db.DB implements it.
type SyncLogReader interface {
	RecentSyncLog(ctx context.Context, limit int) ([]schema.SyncLogEntry, error)
}

// DefaultPort is the dashboard port when none is configured.
const DefaultPort = 8080

// Config configures the dashboard listener.
type Config struct {
	// Host to bind (default: 127.0.0.1)
	Host string

	// Port to listen on (default: 8080, 0 picks a free port)
	Port int

	Logger *logging.Logger
}

// Server serves the dashboard routes and pushes sync events to WebSocket
// clients.
type Server struct {
	addr     string
	listener net.Listener
	http     *http.Server
	router   chi.Router

	syncer msync.Syncer
	log    SyncLogReader
	hub    *hub

	// ctx ends when the server stops; it bounds the fan-out loop and
	// client reads.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *logging.Logger
}

// NewServer creates a dashboard server over syncer. The caller wires it to
// sync events with syncer.Subscribe(NewHandler(server)).
func NewServer(syncer msync.Syncer, log SyncLogReader, config *Config) *Server {
	if config == nil {
		config = &Config{Port: DefaultPort}
	}
	host := config.Host
	if host == "" {
		host = "127.0.0.1"
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("dashboard")

	s := &Server{
		addr:   net.JoinHostPort(host, strconv.Itoa(config.Port)),
		syncer: syncer,
		log:    log,
		hub:    newHub(100, logger),
		logger: logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/sync-log", s.handleSyncLog)
	r.Post("/sync", s.handleSyncAll)
	r.Post("/sync/file", s.handleSyncFile)
	r.Get("/ws", s.handleWebSocket)
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background. It returns once
// the address is bound, so Addr is valid afterwards.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.hub.run(s.ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.logger.Info("dashboard listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()
	return nil
}

// Stop disconnects clients and shuts the HTTP server down within ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	s.hub.closeAll()

	var err error
	if s.http != nil {
		if serr := s.http.Shutdown(ctx); serr != nil {
			err = fmt.Errorf("server shutdown error: %w", serr)
		}
	}

	s.wg.Wait()
	s.logger.Info("dashboard stopped")
	return err
}

// Broadcast queues msg for every connected client. It never blocks; when
// the queue is full the message is dropped.
func (s *Server) Broadcast(msg Message) {
	if s.ctx.Err() != nil {
		return
	}
	if !s.hub.enqueue(msg) {
		s.logger.Warn("broadcast queue full, dropping message", "type", msg.Type)
	}
}

// handleWebSocket upgrades the connection and sends a status snapshot.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	n := s.hub.join(conn)
	s.logger.Debug("client connected", "clients", n)

	if msg, err := s.statusMessage(r.Context()); err == nil {
		if data, err := encode(msg); err == nil {
			_ = write(s.ctx, conn, data)
		}
	}

	// Reads only detect the client going away; clients send nothing.
	go func() {
		defer s.hub.leave(conn)
		for {
			if _, _, err := conn.Read(s.ctx); err != nil {
				return
			}
		}
	}()
}

func (s *Server) statusMessage(ctx context.Context) (Message, error) {
	st, err := s.syncer.Status(ctx)
	if err != nil {
		return Message{}, err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MessageTypeStatus, Timestamp: time.Now(), Data: data}, nil
}

// Addr is the bound address once started, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount reports how many WebSocket clients are connected.
func (s *Server) ClientCount() int {
	return s.hub.count()
}
