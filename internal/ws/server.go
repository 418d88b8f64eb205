package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"kidoku/internal/notify"

	"github.com/gorilla/websocket"
)

type ServerConfig struct {
	// NewSession builds the session behind one connection.
	NewSession func(notify.Notifier) ChatSession
	// Shared is an extra notifier every session uses, e.g. log or Expo.
	Shared notify.Notifier
	// WebPush enables per-connection Web Push when set.
	WebPush *notify.WebPushConfig
}

type Server struct {
	cfg      ServerConfig
	upgrader *websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(cfg ServerConfig) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg: cfg,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // The page may be served from another origin during development
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// HandleConnections upgrades the request and runs one session until the
// socket closes or the server shuts down. Closing the socket drops the
// session without signing out at the provider.
func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.ctx.Err() != nil {
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("error upgrading to websocket", "error", err)
		return
	}

	var push *notify.WebPush
	if s.cfg.WebPush != nil {
		push = notify.NewWebPush(*s.cfg.WebPush)
	}

	s.wg.Add(1)
	defer s.wg.Done()

	conn := NewConnection(ws, s.cfg.NewSession, s.cfg.Shared, push)
	slog.Debug("session connected", "remote", r.RemoteAddr)
	if err := conn.Handle(s.ctx); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		slog.Warn("session ended", "remote", r.RemoteAddr, "error", err)
		return
	}
	slog.Debug("session closed", "remote", r.RemoteAddr)
}

// Close stops all running sessions and waits for them.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}
