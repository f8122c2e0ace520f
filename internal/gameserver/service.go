// Package gameserver hosts the websocket endpoint: it upgrades connections,
// authenticates them, and dispatches their messages to the turn, position,
// roster, and chat handlers.
package gameserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openvtt/tabletop/internal/auth"
	"github.com/openvtt/tabletop/internal/config"
	"github.com/openvtt/tabletop/internal/game/room"
	"github.com/openvtt/tabletop/internal/game/turn"
)

// Service is the websocket front door. It implements server.Service.
type Service struct {
	cfg       config.ServerConfig
	grace     time.Duration
	authn     *auth.Authenticator
	rooms     *room.Registry
	turns     *turn.Coordinator
	turnH     *TurnHandler
	positionH *PositionHandler
	rosterH   *RosterHandler
	chatH     *ChatHandler
	logger    *zap.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// NewService creates the websocket service.
//
// Precondition: all dependencies must be non-nil; grace must be positive.
func NewService(
	cfg config.ServerConfig,
	grace time.Duration,
	authn *auth.Authenticator,
	rooms *room.Registry,
	turns *turn.Coordinator,
	turnH *TurnHandler,
	positionH *PositionHandler,
	rosterH *RosterHandler,
	chatH *ChatHandler,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:       cfg,
		grace:     grace,
		authn:     authn,
		rooms:     rooms,
		turns:     turns,
		turnH:     turnH,
		positionH: positionH,
		rosterH:   rosterH,
		chatH:     chatH,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement belongs to the reverse proxy in front of us.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start listens for websocket upgrades until Stop is called.
//
// Postcondition: Returns nil after a graceful Stop, or the listener error.
func (s *Service) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleUpgrade)

	s.httpSrv = &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: mux,
	}

	s.logger.Info("websocket service listening",
		zap.String("addr", s.cfg.Addr()),
		zap.String("path", s.cfg.Path),
	)

	if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down. Live connections notice on their next read.
func (s *Service) Stop() {
	if s.httpSrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.httpSrv.Shutdown(ctx)
}

func (s *Service) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	ws.SetReadLimit(s.cfg.MaxFrameBytes)

	s.serveConn(r.Context(), ws)
}
