package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"kidoku/internal/ws"
)

type APIServer struct {
	server   *http.Server
	sessions *ws.Server
	wg       sync.WaitGroup
}

func NewAPIServer(sessions *ws.Server, addr string) *APIServer {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})

	// WebSocket endpoint
	mux.HandleFunc("GET /api/session", sessions.HandleConnections)

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		sessions: sessions,
	}
}

func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) Start() error {
	slog.Info("server started", "addr", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and ends every open session.
func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	err := s.server.Shutdown(ctx)
	s.sessions.Close()
	return err
}
