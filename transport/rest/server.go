package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Server struct {
	logger *slog.Logger
	srv    *http.Server
}

// NewRouter - the realtime endpoint is mounted next to the JSON API on one router.
func NewRouter(logger *slog.Logger, matchmaker matchmaker, sessions sessions, realtime http.Handler) *mux.Router {
	h := &handlers{
		logger:     logger.With("component", "rest"),
		matchmaker: matchmaker,
		sessions:   sessions,
	}

	r := mux.NewRouter()

	r.HandleFunc("/ping", h.Ping).Methods(http.MethodGet)

	r.HandleFunc("/join", h.Join).Methods(http.MethodPost)
	r.HandleFunc("/leave", h.Leave).Methods(http.MethodPost)
	r.HandleFunc("/status", h.Status).Methods(http.MethodGet)

	r.HandleFunc("/init", h.Init).Methods(http.MethodPost)
	r.HandleFunc("/match-info", h.MatchInfo).Methods(http.MethodGet)

	if realtime != nil {
		r.Handle("/ws", realtime).Methods(http.MethodGet)
	}

	return r
}

func New(logger *slog.Logger, conf Config, handler http.Handler) *Server {
	return &Server{
		logger: logger,
		srv: &http.Server{
			Addr:         ":" + conf.Port,
			Handler:      handler,
			ReadTimeout:  conf.ReadTimeout,
			WriteTimeout: conf.WriteTimeout,
			IdleTimeout:  conf.IdleTimeout,
		},
	}
}

// Start - serves until Shutdown is called.
func (that *Server) Start() error {
	that.logger.Info("http server started", "addr", that.srv.Addr)

	if err := that.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) Shutdown(ctx context.Context) error {
	if err := that.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	return nil
}
