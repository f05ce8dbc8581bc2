package rpc

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/klingon-exchange/klingon-v2/internal/exchange"
	"github.com/klingon-exchange/klingon-v2/pkg/logging"
)

// Server is the local control-plane: a websocket bridge a desktop UI
// connects to for order-book/transaction push events. It never accepts
// commands that mutate exchange state — read-only, outside the trust path.
type Server struct {
	hub *WSHub
	svc *exchange.Service
	log *logging.Logger

	server   *http.Server
	listener net.Listener
}

// NewServer wires a control-plane server to svc, subscribing its websocket
// hub as an exchange.Observer so every lifecycle event is pushed live.
func NewServer(svc *exchange.Service) *Server {
	hub := NewWSHub()
	svc.Subscribe(NewObserver(hub))
	return &Server{
		hub: hub,
		svc: svc,
		log: logging.GetDefault().Component("rpc"),
	}
}

// Start begins serving on addr. Non-blocking; call Stop to shut down.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener

	go s.hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.hub.HandleWS)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("control-plane server error", "error", err)
		}
	}()
	s.log.Info("control-plane started", "addr", addr, "ws", "ws://"+addr+"/ws")
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":      true,
		"clients": s.hub.ClientCount(),
	})
}
