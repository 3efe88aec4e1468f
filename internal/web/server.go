// Package web serves a small control panel and streams the drawn curve to
// browsers over a websocket.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/guidoenr/kochizer/internal/fractal"
	"github.com/guidoenr/kochizer/internal/render"
)

//go:embed static
var staticFiles embed.FS

const (
	broadcastInterval = 100 * time.Millisecond
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = 54 * time.Second
)

// ErrBusy is returned by a Controller whose command queue is full.
var ErrBusy = errors.New("web: visualizer busy, try again")

// Controller is the running visualizer as seen by the HTTP handlers. Commands
// are queued and applied on the next frame.
type Controller interface {
	Snapshot() Snapshot
	Generate(outward bool) error
	Reset() error
	SetBezier(on *bool) error
	Style(palette, stroke, colorMode string) error
}

// Snapshot is the state published once per frame.
type Snapshot struct {
	FPS       float64        `json:"fps"`
	Source    string         `json:"source"`
	Shape     string         `json:"shape"`
	Axis      string         `json:"axis"`
	Steps     int            `json:"steps"`
	Vertices  int            `json:"vertices"`
	Bezier    bool           `json:"bezier"`
	Amplitude float64        `json:"amplitude"`
	Bands     []float64      `json:"bands"`
	Renderer  RendererStatus `json:"renderer"`
	Points    [][3]float64   `json:"points,omitempty"`
	Walkers   [][3]float64   `json:"walkers,omitempty"`
}

type RendererStatus struct {
	Palette   string `json:"palette"`
	Stroke    string `json:"stroke"`
	ColorMode string `json:"colorMode"`
}

// StyleRequest is the body of POST /api/style. Empty fields are unchanged.
type StyleRequest struct {
	Palette   string `json:"palette,omitempty"`
	Stroke    string `json:"stroke,omitempty"`
	ColorMode string `json:"colorMode,omitempty"`
}

type Server struct {
	ctrl     Controller
	log      *log.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu      sync.Mutex
	clients map[*websocketClient]struct{}
}

type websocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// NewServer wires the handlers. logger may be nil.
func NewServer(ctrl Controller, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[web] ", log.LstdFlags)
	}
	s := &Server{
		ctrl:    ctrl,
		log:     logger,
		clients: make(map[*websocketClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		mux: http.NewServeMux(),
	}

	static, _ := fs.Sub(staticFiles, "static")
	s.mux.Handle("/", http.FileServer(http.FS(static)))
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/generate", s.handleGenerate)
	s.mux.HandleFunc("/api/reset", s.handleReset)
	s.mux.HandleFunc("/api/bezier", s.handleBezier)
	s.mux.HandleFunc("/api/style", s.handleStyle)
	s.mux.HandleFunc("/api/shapes", listHandler(fractal.ShapeNames))
	s.mux.HandleFunc("/api/profiles", listHandler(fractal.ProfileNames))
	s.mux.HandleFunc("/api/palettes", listHandler(render.PaletteNames))
	s.mux.HandleFunc("/api/strokes", listHandler(render.StrokeNames))
	s.mux.HandleFunc("/api/colorModes", listHandler(render.ColorModeNames))
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("web listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.mux, ErrorLog: s.log}
	s.log.Printf("server listening on http://%s", ln.Addr())

	go s.broadcastLoop(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queueError maps a controller error to a response.
func queueError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ErrBusy) {
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func listHandler(names func() []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, names())
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	snap.Points = nil
	snap.Walkers = nil
	writeJSON(w, http.StatusOK, snap)
}

// handleGenerate runs one generator pass. dir is "out" (default) or "in".
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var outward bool
	switch r.URL.Query().Get("dir") {
	case "", "out", "outward":
		outward = true
	case "in", "inward":
		outward = false
	default:
		http.Error(w, "dir must be out or in", http.StatusBadRequest)
		return
	}
	if err := s.ctrl.Generate(outward); err != nil {
		queueError(w, err)
		return
	}
	ok(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := s.ctrl.Reset(); err != nil {
		queueError(w, err)
		return
	}
	ok(w)
}

// handleBezier sets smoothing from ?on=true|false, or toggles it without one.
func (s *Server) handleBezier(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var on *bool
	if v := r.URL.Query().Get("on"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "on must be a boolean", http.StatusBadRequest)
			return
		}
		on = &b
	}
	if err := s.ctrl.SetBezier(on); err != nil {
		queueError(w, err)
		return
	}
	ok(w)
}

func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req StyleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.ctrl.Style(req.Palette, req.Stroke, req.ColorMode); err != nil {
		queueError(w, err)
		return
	}
	ok(w)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("websocket upgrade error: %v", err)
		return
	}

	client := &websocketClient{
		conn:   conn,
		send:   make(chan []byte, 16),
		server: s,
	}
	if data, err := json.Marshal(s.ctrl.Snapshot()); err == nil {
		client.send <- data
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

func (s *Server) removeClient(c *websocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

// broadcast hands data to every client. Clients that cannot keep up are
// dropped.
func (s *Server) broadcast(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			delete(s.clients, client)
			close(client.send)
		}
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.mu.Lock()
			idle := len(s.clients) == 0
			s.mu.Unlock()
			if idle {
				continue
			}
			data, err := json.Marshal(s.ctrl.Snapshot())
			if err != nil {
				s.log.Printf("encode snapshot: %v", err)
				continue
			}
			s.broadcast(data)
		}
	}
}

func (c *websocketClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Only the newest snapshot matters.
			for n := len(c.send); n > 0; n-- {
				next, ok := <-c.send
				if !ok {
					break
				}
				message = next
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
