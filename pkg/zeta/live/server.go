// Package live serves a scanned document over HTTP and keeps connected
// browsers in sync with engine state through a websocket.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chosenoffset/zeta/pkg/zeta"
	"github.com/chosenoffset/zeta/pkg/zeta/actions"
	"github.com/chosenoffset/zeta/pkg/zeta/dom"
	"github.com/chosenoffset/zeta/pkg/zeta/logging"
	"github.com/chosenoffset/zeta/pkg/zeta/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Message is the envelope sent to websocket clients. Types are "hello",
// "change", "render" and "error".
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ChangeData is the payload of a "change" message.
type ChangeData struct {
	Key      string `json:"key"`
	NewValue any    `json:"new_value"`
	OldValue any    `json:"old_value"`
	Depth    int    `json:"depth"`
}

// ClientMessage is what browsers send. Type "event" fires Event on Element;
// type "execute" runs Code as a handler statement.
type ClientMessage struct {
	Type    string `json:"type"`
	Element string `json:"element,omitempty"`
	Event   string `json:"event,omitempty"`
	Value   any    `json:"value,omitempty"`
	Code    string `json:"code,omitempty"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Server owns one engine and document. The engine is single-threaded, so
// every request touching it holds mu.
type Server struct {
	addr         string
	server       *http.Server
	upgrader     websocket.Upgrader
	clients      map[*client]bool
	clientsMutex sync.RWMutex
	maxClients   int
	updates      chan Message
	stop         chan struct{}
	stopOnce     sync.Once
	startOnce    sync.Once
	handler      http.Handler

	mu          sync.Mutex
	engine      *zeta.Engine
	doc         *dom.Document
	logger      logging.Logger
	httpMetrics *metrics.HTTPMetrics
}

// NewServer wraps an initialized engine and a document already scanned
// against it.
func NewServer(addr string, engine *zeta.Engine, doc *dom.Document, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	s := &Server{
		addr:        addr,
		clients:     make(map[*client]bool),
		maxClients:  100,
		updates:     make(chan Message, 256),
		stop:        make(chan struct{}),
		engine:      engine,
		doc:         doc,
		logger:      logger,
		httpMetrics: metrics.NewHTTPMetrics(),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return origin == "http://"+r.Host || origin == "https://"+r.Host
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	engine.OnChange(func(c zeta.Change) {
		s.publish(Message{Type: "change", Data: ChangeData{
			Key:      c.Key,
			NewValue: jsonValue(c.NewValue),
			OldValue: jsonValue(c.OldValue),
			Depth:    c.Depth,
		}})
	})
	return s
}

// SetMaxClients caps concurrent websocket connections.
func (s *Server) SetMaxClients(n int) {
	s.maxClients = n
}

// HTTPMetrics returns the request counters.
func (s *Server) HTTPMetrics() *metrics.HTTPMetrics {
	return s.httpMetrics
}

// Handler returns the server's routes and starts the broadcaster.
func (s *Server) Handler() http.Handler {
	s.startOnce.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/", s.httpMetrics.Middleware("/", s.handleIndex))
		mux.HandleFunc("/api/state", s.httpMetrics.Middleware("/api/state", s.handleState))
		mux.HandleFunc("/api/bindings", s.httpMetrics.Middleware("/api/bindings", s.handleBindings))
		mux.HandleFunc("/api/stats", s.httpMetrics.Middleware("/api/stats", s.handleStats))
		mux.HandleFunc("/api/evaluate", s.httpMetrics.Middleware("/api/evaluate", s.handleEvaluate))
		mux.HandleFunc("/api/execute", s.httpMetrics.Middleware("/api/execute", s.handleExecute))
		mux.HandleFunc("/ws", s.httpMetrics.Middleware("/ws", s.handleWebSocket))
		s.handler = mux

		go s.broadcast()
	})
	return s.handler
}

// Start listens on the configured address and blocks until Stop.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting live server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes client connections and shuts the listener down.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// publish queues a message for every client. It drops the message when the
// queue is full.
func (s *Server) publish(msg Message) {
	select {
	case s.updates <- msg:
	default:
		s.logger.Warn("live update dropped", "type", msg.Type)
	}
}

// render publishes the current body. Callers hold mu.
func (s *Server) render() {
	s.publish(Message{Type: "render", Data: map[string]any{"html": s.doc.BodyHTML()}})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	page := s.doc.String()
	s.mu.Unlock()

	if i := strings.LastIndex(page, "</body>"); i >= 0 {
		page = page[:i] + clientScript + page[i:]
	} else {
		page += clientScript
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, page)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	state := s.state()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleBindings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	bindings := s.engine.GetBindings()
	s.mu.Unlock()

	type bindingCount struct {
		Key   string `json:"key"`
		Count int    `json:"count"`
	}
	counts := make([]bindingCount, 0, len(bindings))
	for key, cbs := range bindings {
		counts = append(counts, bindingCount{Key: key, Count: len(cbs)})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Key < counts[j].Key })
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.clientsMutex.RLock()
	clients := len(s.clients)
	s.clientsMutex.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"engine":  s.engine.Metrics().GetStats(),
		"http":    s.httpMetrics.GetStats(),
		"runtime": metrics.ReadRuntime(),
		"clients": clients,
	})
}

type evaluateRequest struct {
	Expr string `json:"expr"`
}

type executeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Expr) == "" {
		writeError(w, http.StatusBadRequest, "expr is required")
		return
	}

	s.mu.Lock()
	value := s.engine.Evaluate(req.Expr)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, jsonValue(value))
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	s.mu.Lock()
	value := s.engine.Execute(req.Code)
	s.render()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, jsonValue(value))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.clientsMutex.RLock()
	clientCount := len(s.clients)
	s.clientsMutex.RUnlock()

	if clientCount >= s.maxClients {
		http.Error(w, "Maximum clients reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, 64)}

	s.mu.Lock()
	hello := Message{Type: "hello", Data: map[string]any{
		"client_id": c.id,
		"state":     s.state(),
		"html":      s.doc.BodyHTML(),
	}}
	if data, err := json.Marshal(hello); err == nil {
		c.send <- data
	}
	s.clientsMutex.Lock()
	s.clients[c] = true
	s.clientsMutex.Unlock()
	s.mu.Unlock()

	s.logger.Debug("client connected", "client", c.id)
	go s.writePump(c)
	s.readPump(c)

	s.clientsMutex.Lock()
	delete(s.clients, c)
	close(c.send)
	s.clientsMutex.Unlock()
	s.logger.Debug("client disconnected", "client", c.id)
}

// readPump handles client messages until the connection fails.
func (s *Server) readPump(c *client) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "client", c.id, "error", err)
			}
			return
		}
		if err := s.handleClientMessage(msg); err != nil {
			s.logger.Debug("client message rejected", "client", c.id, "error", err)
			s.sendTo(c, Message{Type: "error", Data: map[string]any{"message": err.Error()}})
		}
	}
}

func (s *Server) handleClientMessage(msg ClientMessage) error {
	switch msg.Type {
	case "event":
		eventType, err := actions.ParseEventType(msg.Event)
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.doc.Dispatch(msg.Element, eventType, msg.Value); err != nil {
			return err
		}
		s.render()
		return nil
	case "execute":
		if strings.TrimSpace(msg.Code) == "" {
			return errors.New("code is required")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.engine.Execute(msg.Code)
		s.render()
		return nil
	}
	return fmt.Errorf("unknown message type: %q", msg.Type)
}

// writePump is the only writer on c.conn.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Server) broadcast() {
	for {
		select {
		case msg := <-s.updates:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error("failed to marshal live update", "type", msg.Type, "error", err)
				continue
			}
			s.clientsMutex.RLock()
			for c := range s.clients {
				select {
				case c.send <- data:
				default:
					s.logger.Warn("client too slow, update dropped", "client", c.id, "type", msg.Type)
				}
			}
			s.clientsMutex.RUnlock()
		case <-s.stop:
			return
		}
	}
}

// sendTo queues msg for one client if it is still connected.
func (s *Server) sendTo(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	if !s.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// state copies engine state into JSON-safe values. Callers hold mu.
func (s *Server) state() map[string]any {
	state := s.engine.GetState()
	for k, v := range state {
		state[k] = jsonValue(v)
	}
	return state
}

// jsonValue falls back to the display string for values encoding/json
// rejects, such as helpers and NaN.
func jsonValue(v any) any {
	if _, err := json.Marshal(v); err != nil {
		return zeta.ToString(v)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"data":   data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "error",
		"error":  message,
	})
}
