package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

type memoryRecord struct {
	admission *entity.MatchAdmission
	moves     []entity.StoredMove
	expiresAt time.Time
}

// memoryMatch keeps matches in process memory. Used for local runs and tests.
type memoryMatch struct {
	clock clockwork.Clock

	mu      sync.Mutex
	matches map[string]*memoryRecord
}

func NewMemoryMatchRepository(clock clockwork.Clock) MatchRepository {
	return &memoryMatch{
		clock:   clock,
		matches: make(map[string]*memoryRecord),
	}
}

func (that *memoryMatch) Load(_ context.Context, gameID string) (*entity.MatchSnapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	record, ok := that.lookup(gameID)
	if !ok {
		return nil, apperror.ErrMatchNotFound
	}

	snapshot := &entity.MatchSnapshot{
		Moves: append([]entity.StoredMove(nil), record.moves...),
	}

	if record.admission != nil {
		admission := *record.admission
		admission.Players = append([]entity.Admission(nil), record.admission.Players...)
		snapshot.Admission = &admission
	}

	return snapshot, nil
}

func (that *memoryMatch) SaveAdmission(_ context.Context, admission *entity.MatchAdmission) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	stored := *admission
	stored.Players = append([]entity.Admission(nil), admission.Players...)

	that.record(admission.GameID).admission = &stored

	return nil
}

func (that *memoryMatch) AppendMove(_ context.Context, gameID string, move *entity.StoredMove) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	record := that.record(gameID)
	record.moves = append(record.moves, *move)

	return nil
}

func (that *memoryMatch) Expire(_ context.Context, gameID string, ttl time.Duration) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if record, ok := that.lookup(gameID); ok {
		record.expiresAt = that.clock.Now().Add(ttl)
	}

	return nil
}

// lookup - drops an expired record on the way.
func (that *memoryMatch) lookup(gameID string) (*memoryRecord, bool) {
	record, ok := that.matches[gameID]
	if !ok {
		return nil, false
	}

	if !record.expiresAt.IsZero() && !that.clock.Now().Before(record.expiresAt) {
		delete(that.matches, gameID)
		return nil, false
	}

	return record, true
}

func (that *memoryMatch) record(gameID string) *memoryRecord {
	record, ok := that.lookup(gameID)
	if !ok {
		record = &memoryRecord{}
		that.matches[gameID] = record
	}

	return record
}
