package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/fairtable/internal/table"
)

// Server exposes a table registry over HTTP and WebSocket. Player identity
// comes from the player query parameter; authenticating it is left to a
// fronting proxy.
type Server struct {
	registry *table.Registry
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	// ctx bounds connection lifetimes; Serve replaces it.
	ctx context.Context
}

// NewServer constructs a server over registry.
func NewServer(registry *table.Registry, logger zerolog.Logger) *Server {
	s := &Server{
		registry: registry,
		logger:   logger.With().Str("component", "transport").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		mux: http.NewServeMux(),
		ctx: context.Background(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /tables", s.handleList)
	s.mux.HandleFunc("GET /tables/{id}", s.handleTable)
	s.mux.HandleFunc("GET /tables/{id}/ws", s.handleWebSocket)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.ctx = ctx
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	actor, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, Error{Type: MessageError, Code: errorCode(err), Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, actor.View(r.URL.Query().Get("player")))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	actor, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		http.Error(w, "player required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.logger.Debug().Str("table_id", actor.ID()).Str("player_id", playerID).Msg("client connected")
	newConnection(s.ctx, conn, actor, playerID, s.logger).serve()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
