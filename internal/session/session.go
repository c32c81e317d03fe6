package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/actor"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/ratelimit"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/tictactoe"
)

// Channel is one live realtime connection of a player.
type Channel interface {
	Send(frame []byte) error
	Close() error
}

// Repository is the durable key-value store of match sessions.
type Repository interface {
	Load(ctx context.Context, gameID string) (*entity.MatchSnapshot, error)
	SaveAdmission(ctx context.Context, admission *entity.MatchAdmission) error
	AppendMove(ctx context.Context, gameID string, move *entity.StoredMove) error
	Expire(ctx context.Context, gameID string, ttl time.Duration) error
}

type Config struct {
	TeardownBothGone  time.Duration
	TeardownOneGone   time.Duration
	CompletionCleanup time.Duration
	FinishedRetention time.Duration
	MoveRateLimit     int
	MoveRatePeriod    time.Duration
	DuplicateDepth    int
	DuplicateWindow   time.Duration
	StorageTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		TeardownBothGone:  30 * time.Second,
		TeardownOneGone:   5 * time.Minute,
		CompletionCleanup: time.Minute,
		FinishedRetention: 24 * time.Hour,
		MoveRateLimit:     10,
		MoveRatePeriod:    time.Second,
		DuplicateDepth:    4,
		DuplicateWindow:   5 * time.Second,
		StorageTimeout:    5 * time.Second,
	}
}

type connection struct {
	playerID   string
	symbol     string
	channel    Channel
	connected  bool
	lastSeenAt time.Time
}

// Session owns one match. Every field below mailbox is only touched from inside the mailbox.
type Session struct {
	gameID    string
	logger    *slog.Logger
	clock     clockwork.Clock
	repo      Repository
	cfg       Config
	onReclaim func(gameID string, session *Session)

	mailbox *actor.Mailbox

	loaded    bool
	reclaimed bool
	admission *entity.MatchAdmission
	state     entity.GameState
	moves     []entity.StoredMove

	// volatile, never persisted
	conns   map[string]*connection
	lastSeq map[string]int64
	limiter *ratelimit.Limiter

	teardown      clockwork.Timer
	teardownGen   uint64
	completion    clockwork.Timer
	completionGen uint64
	gameOverSent  bool
}

func newSession(gameID string, logger *slog.Logger, clock clockwork.Clock, repo Repository, cfg Config, onReclaim func(string, *Session)) *Session {
	return &Session{
		gameID:    gameID,
		logger:    logger.With("gameID", gameID),
		clock:     clock,
		repo:      repo,
		cfg:       cfg,
		onReclaim: onReclaim,
		mailbox:   actor.NewMailbox(),
		conns:     make(map[string]*connection),
		lastSeq:   make(map[string]int64),
		limiter:   ratelimit.New(cfg.MoveRateLimit, cfg.MoveRatePeriod),
	}
}

func (that *Session) GameID() string {
	return that.gameID
}

// Initialize - stores the admission list. Repeating the call with the same players is a no-op.
func (that *Session) Initialize(ctx context.Context, players []entity.Admission) error {
	if err := validateAdmissions(players); err != nil {
		return err
	}

	return that.do(ctx, func() error {
		log := that.logger.With("method", "Initialize")

		if err := that.load(ctx); err != nil {
			return err
		}

		if that.admission != nil {
			if that.admission.SamePlayers(players) {
				return nil
			}

			log.Warn("initialization with different players rejected")

			return apperror.ErrAlreadyInitialized
		}

		admission := &entity.MatchAdmission{
			GameID:    that.gameID,
			Players:   append([]entity.Admission(nil), players...),
			CreatedAt: that.clock.Now(),
		}

		storeCtx, cancel := context.WithTimeout(ctx, that.cfg.StorageTimeout)
		defer cancel()

		if err := that.repo.SaveAdmission(storeCtx, admission); err != nil {
			return fmt.Errorf("failed to save admission: %w", err)
		}

		that.admission = admission
		if len(that.moves) == 0 {
			that.state = tictactoe.NewGame(that.gameID, admission.CreatedAt)
		}

		// nobody is connected yet; reclaim memory if nobody shows up
		that.armTeardown()

		log.Info("match initialized")

		return nil
	})
}

// Authorize - checks a player's token without attaching anything.
func (that *Session) Authorize(ctx context.Context, playerID, token string) error {
	return that.do(ctx, func() error {
		if err := that.load(ctx); err != nil {
			return err
		}

		_, err := that.admit(playerID, token)
		if err != nil {
			that.reclaimIfUnknown()
		}

		return err
	})
}

// Attach - admits a player's channel. A known player is reconnected with the original symbol.
func (that *Session) Attach(ctx context.Context, playerID, token string, channel Channel) error {
	return that.do(ctx, func() error {
		log := that.logger.With("method", "Attach", "playerID", playerID)

		if err := that.load(ctx); err != nil {
			return err
		}

		admission, err := that.admit(playerID, token)
		if err != nil {
			that.reclaimIfUnknown()
			return err
		}

		now := that.clock.Now()

		conn, ok := that.conns[playerID]
		if ok {
			if conn.connected && conn.channel != channel {
				_ = conn.channel.Close()
			}

			conn.channel = channel
			conn.connected = true
			conn.lastSeenAt = now

			log.Info("player reconnected")
		} else {
			conn = &connection{
				playerID:   playerID,
				symbol:     admission.Symbol,
				channel:    channel,
				connected:  true,
				lastSeenAt: now,
			}
			that.conns[playerID] = conn

			log.Info("player connected")
		}

		that.cancelTeardown()
		that.broadcastGameState()

		return nil
	})
}

// Detach - marks the player offline unless the channel was already replaced by a reconnect.
func (that *Session) Detach(playerID string, channel Channel) {
	that.mailbox.Post(func() {
		conn, ok := that.conns[playerID]
		if !ok || !conn.connected || conn.channel != channel {
			return
		}

		that.markDisconnected(conn)
	})
}

// HandleMessage - processes one inbound frame from a player's channel.
func (that *Session) HandleMessage(ctx context.Context, playerID string, channel Channel, data []byte) error {
	return that.do(ctx, func() error {
		conn, ok := that.conns[playerID]
		if !ok || !conn.connected || conn.channel != channel {
			return apperror.ErrUnauthorized
		}

		conn.lastSeenAt = that.clock.Now()

		msg, err := decodeInbound(data)
		if err != nil {
			that.sendError(conn, "malformed message", 0)
			return nil
		}

		switch msg := msg.(type) {
		case makeMove:
			that.handleMakeMove(ctx, conn, msg)
		case unknownMessage:
			that.sendError(conn, "unknown message type", 0)
		}

		return nil
	})
}

// MatchInfo - reports the session for the matchmaking layer.
func (that *Session) MatchInfo(ctx context.Context) (entity.MatchInfo, error) {
	var info entity.MatchInfo

	err := that.do(ctx, func() error {
		if err := that.load(ctx); err != nil {
			return err
		}

		if that.admission == nil {
			that.reclaimIfUnknown()
			return apperror.ErrMatchNotFound
		}

		info = entity.MatchInfo{
			GameID:         that.gameID,
			ConnectedCount: that.connectedCount(),
			Status:         that.state.Status,
		}

		return nil
	})

	return info, err
}

// stop - shuts the actor down without notifying the registry.
func (that *Session) stop() {
	that.mailbox.Post(func() {
		that.onReclaim = nil
		that.reclaim()
	})
}

func (that *Session) do(ctx context.Context, fn func() error) error {
	return that.mailbox.Do(ctx, func() error {
		if that.reclaimed {
			return apperror.ErrActorStopped
		}

		return fn()
	})
}

// load - restores the match from the repository the first time it is needed.
func (that *Session) load(ctx context.Context) error {
	if that.loaded {
		return nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, that.cfg.StorageTimeout)
	defer cancel()

	snapshot, err := that.repo.Load(storeCtx, that.gameID)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		that.loaded = true
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to load match: %w", err)
	}

	createdAt := that.clock.Now()
	if snapshot.Admission != nil {
		createdAt = snapshot.Admission.CreatedAt
	}

	state, err := tictactoe.Replay(that.gameID, createdAt, snapshot.Moves)
	if err != nil {
		return fmt.Errorf("failed to restore match: %w", err)
	}

	that.admission = snapshot.Admission
	that.moves = snapshot.Moves
	that.state = state
	that.loaded = true

	if state.IsFinished() {
		that.gameOverSent = true
		that.armCompletion()
	}

	that.logger.Info("match restored", "moves", len(snapshot.Moves), "status", state.Status)

	return nil
}

func (that *Session) admit(playerID, token string) (entity.Admission, error) {
	if that.admission == nil {
		return entity.Admission{}, apperror.ErrUnauthorized
	}

	admission, ok := that.admission.Find(playerID)
	if !ok || token == "" {
		return entity.Admission{}, apperror.ErrUnauthorized
	}

	if subtle.ConstantTimeCompare([]byte(admission.Token), []byte(token)) != 1 {
		return entity.Admission{}, apperror.ErrUnauthorized
	}

	return admission, nil
}

func (that *Session) connectedCount() int {
	count := 0
	for _, conn := range that.conns {
		if conn.connected {
			count++
		}
	}

	return count
}

func validateAdmissions(players []entity.Admission) error {
	if len(players) != 2 {
		return fmt.Errorf("%w: exactly two players are required", apperror.ErrMalformedRequest)
	}

	first, second := players[0], players[1]

	if first.PlayerID == "" || second.PlayerID == "" || first.PlayerID == second.PlayerID {
		return fmt.Errorf("%w: player ids must be distinct", apperror.ErrMalformedRequest)
	}

	if !entity.IsValidSymbol(first.Symbol) || second.Symbol != entity.Opponent(first.Symbol) {
		return fmt.Errorf("%w: symbols must be X and O", apperror.ErrMalformedRequest)
	}

	if first.Token == "" || second.Token == "" {
		return fmt.Errorf("%w: tokens are required", apperror.ErrMalformedRequest)
	}

	return nil
}
