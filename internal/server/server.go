// Package server exposes the live EMG stream over WebSocket and a small
// status API. It is a host-side collaborator: the acquisition core never
// depends on it.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quickflex/emgdaq/internal/emg"
)

// TickFrame is the JSON payload broadcast to all WebSocket clients once per
// IMU tick. The sample slices hold only the newest samples of that tick, not
// the whole window.
type TickFrame struct {
	Stamp    int64      `json:"stamp"` // Unix ms
	Raw      []float64  `json:"raw"`
	Bandpass []float64  `json:"bandpass"`
	Notch    []float64  `json:"notch"`
	Envelope []float64  `json:"envelope"`
	IMU      [3]float64 `json:"imu"`
	// Magnitude spectrum of the notch window with the frequency of each bin
	// in Hz, so clients never have to re-derive the bin spacing.
	Spectrum      []float64 `json:"spectrum,omitempty"`
	SpectrumFreqs []float64 `json:"spectrumFreqs,omitempty"`
}

// Server broadcasts tick frames to WebSocket clients and serves status.
type Server struct {
	cfg    *Config
	reader *emg.Reader

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Server over the given session.
func New(cfg *Config, reader *emg.Reader) *Server {
	return &Server{
		cfg:     cfg,
		reader:  reader,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/status", s.handleStatus)

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Broadcast sends a tick frame to every connected client. Slow clients are
// skipped rather than blocking the tick loop.
func (s *Server) Broadcast(frame *TickFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[server] marshal tick frame: %v", err)
		return
	}
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()
	log.Printf("[ws] client connected (%d total)", total)

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine: drains incoming messages, tears down on error.
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			log.Printf("[ws] client disconnected (%d total)", total)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// status is the /api/status response body.
type status struct {
	DeviceState string  `json:"deviceState"`
	EMGRate     int     `json:"emgRate"`
	IMURate     int     `json:"imuRate"`
	WindowSize  int     `json:"windowSize"`
	LowCut      float64 `json:"lowCut"`
	HighCut     float64 `json:"highCut"`
	Notch       float64 `json:"notch"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st := status{
		DeviceState: s.reader.DeviceState().String(),
		EMGRate:     s.reader.Fs(),
		IMURate:     s.reader.IMURate(),
		WindowSize:  s.reader.WindowSize(),
		LowCut:      s.cfg.Filter.LowCut,
		HighCut:     s.cfg.Filter.HighCut,
		Notch:       s.cfg.Filter.Notch,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}
