package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/actor"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/ratelimit"
)

// SessionInitializer creates match sessions for freshly paired players.
type SessionInitializer interface {
	InitializeMatch(ctx context.Context, gameID string, players []entity.Admission) error
	MatchInfo(ctx context.Context, gameID string) (entity.MatchInfo, error)
}

type Config struct {
	WaitPerPosition time.Duration
	SweepInterval   time.Duration
	MaxQueueWait    time.Duration
	RecordTTL       time.Duration
	HibernateAfter  time.Duration
	InitTimeout     time.Duration
	RateLimit       int
	RatePeriod      time.Duration
}

func DefaultConfig() Config {
	return Config{
		WaitPerPosition: 10 * time.Second,
		SweepInterval:   30 * time.Second,
		MaxQueueWait:    5 * time.Minute,
		RecordTTL:       10 * time.Minute,
		HibernateAfter:  2 * time.Minute,
		InitTimeout:     5 * time.Second,
		RateLimit:       30,
		RatePeriod:      10 * time.Second,
	}
}

type JoinResult struct {
	Matched              bool   `json:"matched"`
	GameID               string `json:"gameId,omitempty"`
	YourSymbol           string `json:"yourSymbol,omitempty"`
	ConnectToken         string `json:"connectToken,omitempty"`
	Position             int    `json:"position,omitempty"`
	EstimatedWaitSeconds int    `json:"estimatedWaitSeconds,omitempty"`
	PlayersInQueue       int    `json:"playersInQueue,omitempty"`
}

type LeaveResult struct {
	Success        bool `json:"success"`
	PlayersInQueue int  `json:"playersInQueue"`
}

type StatusResult struct {
	PlayersInQueue     int `json:"playersInQueue"`
	AverageWaitSeconds int `json:"averageWaitSeconds"`
}

// Matchmaker is the single queue of waiting players. State below mailbox is
// only touched from inside the mailbox.
type Matchmaker struct {
	logger    *slog.Logger
	clock     clockwork.Clock
	sessions  SessionInitializer
	cfg       Config
	scheduler gocron.Scheduler

	mailbox *actor.Mailbox

	queue        []entity.QueueEntry
	records      map[string]entity.MatchRecord
	limiter      *ratelimit.Limiter
	lastActivity time.Time
	sweepJob     gocron.Job
}

func New(logger *slog.Logger, clock clockwork.Clock, sessions SessionInitializer, cfg Config) (*Matchmaker, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock), gocron.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	scheduler.Start()

	return &Matchmaker{
		logger:    logger.With("component", "matchmaking"),
		clock:     clock,
		sessions:  sessions,
		cfg:       cfg,
		scheduler: scheduler,
		mailbox:   actor.NewMailbox(),
		records:   make(map[string]entity.MatchRecord),
		limiter:   ratelimit.New(cfg.RateLimit, cfg.RatePeriod),
	}, nil
}

// Join - dual purpose: enqueues a player and, on later polls, hands out the match found for it.
func (that *Matchmaker) Join(ctx context.Context, source, playerID, displayName string) (JoinResult, error) {
	if err := validatePlayerID(playerID); err != nil {
		return JoinResult{}, err
	}

	name, err := normalizeDisplayName(displayName)
	if err != nil {
		return JoinResult{}, err
	}

	var result JoinResult

	err = that.mailbox.Do(ctx, func() error {
		log := that.logger.With("method", "Join", "playerID", playerID)

		if err := that.admit(source); err != nil {
			return err
		}

		if record, ok := that.records[playerID]; ok {
			if record.Delivered {
				// already matched; a re-poll must not queue the player for a second game
				log.Info("match record already delivered", "gameID", record.GameID)
				result = JoinResult{}

				return nil
			}

			record.Delivered = true
			that.records[playerID] = record
			result = matchedResult(record)

			log.Info("match record delivered", "gameID", record.GameID)

			return nil
		}

		if that.position(playerID) == 0 {
			that.queue = append(that.queue, entity.QueueEntry{
				PlayerID:    playerID,
				DisplayName: name,
				JoinedAt:    that.clock.Now(),
			})

			log.Info("player enqueued", "playersInQueue", len(that.queue))
		}

		// two or more waiting only happens after a failed pairing; retry it on every poll
		for len(that.queue) >= 2 {
			matched, err := that.tryMatch(ctx, playerID)
			if err != nil {
				return err
			}

			if matched != nil {
				result = *matched
				return nil
			}
		}

		result = that.waitingResult(playerID)

		return nil
	})

	return result, err
}

// Leave - removes a waiting player and forgets a delivered match, so the next
// Join queues the player again. Leaving an empty queue is not an error.
func (that *Matchmaker) Leave(ctx context.Context, source, playerID string) (LeaveResult, error) {
	if err := validatePlayerID(playerID); err != nil {
		return LeaveResult{}, err
	}

	var result LeaveResult

	err := that.mailbox.Do(ctx, func() error {
		if err := that.admit(source); err != nil {
			return err
		}

		if record, ok := that.records[playerID]; ok && record.Delivered {
			delete(that.records, playerID)
		}

		position := that.position(playerID)
		if position > 0 {
			that.queue = append(that.queue[:position-1:position-1], that.queue[position:]...)

			that.logger.Info("player left queue", "method", "Leave", "playerID", playerID)
		}

		result = LeaveResult{Success: position > 0, PlayersInQueue: len(that.queue)}

		return nil
	})

	return result, err
}

func (that *Matchmaker) Status(ctx context.Context, source string) (StatusResult, error) {
	var result StatusResult

	err := that.mailbox.Do(ctx, func() error {
		if err := that.admit(source); err != nil {
			return err
		}

		result = StatusResult{
			PlayersInQueue:     len(that.queue),
			AverageWaitSeconds: that.averageWaitSeconds(),
		}

		return nil
	})

	return result, err
}

func (that *Matchmaker) Shutdown() error {
	that.mailbox.Stop()

	if err := that.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	return nil
}

// admit - per-source rate limiting; every admitted call counts as activity.
func (that *Matchmaker) admit(source string) error {
	now := that.clock.Now()

	if ok, retryAfter := that.limiter.Allow(source, now); !ok {
		that.logger.Warn("request rate limited", "source", source)
		return &apperror.RateLimitError{RetryAfter: retryAfter}
	}

	that.lastActivity = now
	that.ensureSweep()

	return nil
}

// tryMatch - pairs the two oldest players. On a failed session start both return
// to the front of the queue in their original order.
func (that *Matchmaker) tryMatch(ctx context.Context, callerID string) (*JoinResult, error) {
	log := that.logger.With("method", "tryMatch")

	first, second := that.queue[0], that.queue[1]
	that.queue = append([]entity.QueueEntry(nil), that.queue[2:]...)

	gameID := uuid.NewString()

	players, err := newAdmissions(first.PlayerID, second.PlayerID)
	if err == nil {
		err = that.startSession(ctx, gameID, players)
	}

	if err != nil {
		that.queue = append([]entity.QueueEntry{first, second}, that.queue...)

		log.Error("failed to start match, players requeued", "gameID", gameID, "error", err)

		return nil, fmt.Errorf("%w: %w", apperror.ErrDownstreamInit, err)
	}

	log.Info("players matched", "gameID", gameID, "playerX", first.PlayerID, "playerO", second.PlayerID)

	now := that.clock.Now()

	var result *JoinResult

	for _, player := range players {
		record := entity.MatchRecord{
			GameID:    gameID,
			Symbol:    player.Symbol,
			Token:     player.Token,
			MatchedAt: now,
		}

		if player.PlayerID == callerID {
			matched := matchedResult(record)
			result = &matched
			record.Delivered = true
		}

		that.records[player.PlayerID] = record
	}

	return result, nil
}

func (that *Matchmaker) startSession(ctx context.Context, gameID string, players []entity.Admission) error {
	initCtx, cancel := context.WithTimeout(ctx, that.cfg.InitTimeout)
	defer cancel()

	if err := that.sessions.InitializeMatch(initCtx, gameID, players); err != nil {
		return err
	}

	info, err := that.sessions.MatchInfo(initCtx, gameID)
	if err != nil {
		return err
	}

	if info.GameID != gameID {
		return errors.New("session reported a different game")
	}

	return nil
}

func newAdmissions(playerX, playerO string) ([]entity.Admission, error) {
	tokenX, err := newToken()
	if err != nil {
		return nil, err
	}

	tokenO, err := newToken()
	if err != nil {
		return nil, err
	}

	return []entity.Admission{
		{PlayerID: playerX, Symbol: entity.PlayerX, Token: tokenX},
		{PlayerID: playerO, Symbol: entity.PlayerO, Token: tokenO},
	}, nil
}

// position - 1-based place in the queue, 0 when absent.
func (that *Matchmaker) position(playerID string) int {
	for i, entry := range that.queue {
		if entry.PlayerID == playerID {
			return i + 1
		}
	}

	return 0
}

func (that *Matchmaker) waitingResult(playerID string) JoinResult {
	position := that.position(playerID)

	return JoinResult{
		Matched:              false,
		Position:             position,
		EstimatedWaitSeconds: int(time.Duration(position) * that.cfg.WaitPerPosition / time.Second),
		PlayersInQueue:       len(that.queue),
	}
}

func (that *Matchmaker) averageWaitSeconds() int {
	if len(that.queue) == 0 {
		return 0
	}

	now := that.clock.Now()

	var total time.Duration
	for _, entry := range that.queue {
		total += now.Sub(entry.JoinedAt)
	}

	return int(total / time.Duration(len(that.queue)) / time.Second)
}

func matchedResult(record entity.MatchRecord) JoinResult {
	return JoinResult{
		Matched:      true,
		GameID:       record.GameID,
		YourSymbol:   record.Symbol,
		ConnectToken: record.Token,
	}
}
