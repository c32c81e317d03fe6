package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/session"
)

const maxParamLength = 128

type Config struct {
	ReadLimit    int64
	WriteWait    time.Duration
	PongWait     time.Duration
	PingInterval time.Duration
	CallTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReadLimit:    1024,
		WriteWait:    10 * time.Second,
		PongWait:     60 * time.Second,
		PingInterval: 50 * time.Second,
		CallTimeout:  5 * time.Second,
	}
}

type registry interface {
	Authorize(ctx context.Context, gameID, playerID, token string) error
	Attach(ctx context.Context, gameID, playerID, token string, channel session.Channel) (*session.Session, error)
}

// Server upgrades admitted players to a realtime connection with their match.
type Server struct {
	logger   *slog.Logger
	registry registry
	cfg      Config
	upgrader websocket.Upgrader
}

func New(logger *slog.Logger, registry registry, cfg Config) *Server {
	return &Server{
		logger:   logger.With("component", "websocket"),
		registry: registry,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP - GET /ws?gameId=&playerId=&token=. Nothing is upgraded unless the player is admitted.
func (that *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	gameID, playerID, token := query.Get("gameId"), query.Get("playerId"), query.Get("token")

	log := that.logger.With("method", "ServeHTTP", "gameID", gameID, "playerID", playerID)

	if !session.ValidGameID(gameID) || !validParam(playerID) || !validParam(token) {
		http.Error(w, "invalid parameters", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), that.cfg.CallTimeout)
	err := that.registry.Authorize(ctx, gameID, playerID, token)
	cancel()

	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			log.Info("connection refused")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		log.Error("failed to authorize connection", "error", err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)

		return
	}

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	ch := newChannel(conn, that.cfg.WriteWait)

	ctx, cancel = context.WithTimeout(r.Context(), that.cfg.CallTimeout)
	match, err := that.registry.Attach(ctx, gameID, playerID, token, ch)
	cancel()

	if err != nil {
		log.Warn("failed to attach connection", "error", err)

		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized")
		_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(that.cfg.WriteWait))
		_ = conn.Close()

		return
	}

	log.Info("websocket connection established")

	that.serve(r.Context(), match, playerID, ch)
}

// serve - reads frames until the connection drops or the session lets go of it.
func (that *Server) serve(ctx context.Context, match *session.Session, playerID string, ch *channel) {
	log := that.logger.With("method", "serve", "gameID", match.GameID(), "playerID", playerID)

	done := make(chan struct{})

	defer func() {
		close(done)
		match.Detach(playerID, ch)
		_ = ch.Close()

		log.Info("websocket connection closed")
	}()

	ch.conn.SetReadLimit(that.cfg.ReadLimit)
	_ = ch.conn.SetReadDeadline(time.Now().Add(that.cfg.PongWait))
	ch.conn.SetPongHandler(func(string) error {
		return ch.conn.SetReadDeadline(time.Now().Add(that.cfg.PongWait))
	})

	go that.keepAlive(ch, done)

	for {
		messageType, data, err := ch.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("connection dropped", "error", err)
			}

			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		_ = ch.conn.SetReadDeadline(time.Now().Add(that.cfg.PongWait))

		callCtx, cancel := context.WithTimeout(ctx, that.cfg.CallTimeout)
		err = match.HandleMessage(callCtx, playerID, ch, data)
		cancel()

		if err != nil {
			// replaced by a reconnect or the session was reclaimed
			log.Info("stopped serving connection", "reason", err)
			return
		}
	}
}

func (that *Server) keepAlive(ch *channel, done <-chan struct{}) {
	ticker := time.NewTicker(that.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ch.ping(); err != nil {
				return
			}
		}
	}
}

func validParam(value string) bool {
	return value != "" && len(value) <= maxParamLength
}
