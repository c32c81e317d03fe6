package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

const maxAttempts = 3

var gameIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Registry maps game ids to live session actors and creates them on demand.
type Registry struct {
	logger *slog.Logger
	clock  clockwork.Clock
	repo   Repository
	cfg    Config

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewRegistry(logger *slog.Logger, clock clockwork.Clock, repo Repository, cfg Config) *Registry {
	return &Registry{
		logger:   logger.With("component", "session"),
		clock:    clock,
		repo:     repo,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

func ValidGameID(gameID string) bool {
	return gameIDPattern.MatchString(gameID)
}

// InitializeMatch - stores the admission list of a new match.
func (that *Registry) InitializeMatch(ctx context.Context, gameID string, players []entity.Admission) error {
	log := that.logger.With("method", "InitializeMatch", "gameID", gameID)

	err := that.withSession(ctx, gameID, func(session *Session) error {
		return session.Initialize(ctx, players)
	})
	if err != nil {
		log.Warn("failed to initialize match", "error", err)
		return err
	}

	return nil
}

func (that *Registry) MatchInfo(ctx context.Context, gameID string) (entity.MatchInfo, error) {
	var info entity.MatchInfo

	err := that.withSession(ctx, gameID, func(session *Session) error {
		var err error
		info, err = session.MatchInfo(ctx)

		return err
	})

	return info, err
}

// Authorize - checks admission before the transport commits to an upgrade.
func (that *Registry) Authorize(ctx context.Context, gameID, playerID, token string) error {
	return that.withSession(ctx, gameID, func(session *Session) error {
		return session.Authorize(ctx, playerID, token)
	})
}

// Attach - connects the channel and returns the session the transport should talk to.
func (that *Registry) Attach(ctx context.Context, gameID, playerID, token string, channel Channel) (*Session, error) {
	var attached *Session

	err := that.withSession(ctx, gameID, func(session *Session) error {
		if err := session.Attach(ctx, playerID, token, channel); err != nil {
			return err
		}

		attached = session

		return nil
	})

	return attached, err
}

func (that *Registry) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.sessions)
}

// Shutdown - stops every actor. Later calls fail with ErrActorStopped.
func (that *Registry) Shutdown() {
	that.mu.Lock()
	sessions := that.sessions
	that.sessions = make(map[string]*Session)
	that.closed = true
	that.mu.Unlock()

	for _, session := range sessions {
		session.stop()
	}

	that.logger.Info("sessions stopped", "count", len(sessions))
}

// withSession - a session may be reclaimed between lookup and call; a fresh one is built then.
func (that *Registry) withSession(ctx context.Context, gameID string, fn func(*Session) error) error {
	if !ValidGameID(gameID) {
		return fmt.Errorf("%w: invalid game id", apperror.ErrMalformedRequest)
	}

	var err error

	for range maxAttempts {
		var session *Session

		session, err = that.get(gameID)
		if err != nil {
			return err
		}

		err = fn(session)
		if !errors.Is(err, apperror.ErrActorStopped) {
			return err
		}

		that.evict(gameID, session)
	}

	return err
}

func (that *Registry) get(gameID string) (*Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return nil, apperror.ErrActorStopped
	}

	session, ok := that.sessions[gameID]
	if !ok {
		session = newSession(gameID, that.logger, that.clock, that.repo, that.cfg, that.evict)
		that.sessions[gameID] = session
	}

	return session, nil
}

// evict - removes the session only if it is still the registered one.
func (that *Registry) evict(gameID string, session *Session) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.sessions[gameID] == session {
		delete(that.sessions, gameID)
	}
}
