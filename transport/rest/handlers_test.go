package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/matchmaking"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/repository"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/session"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClock()

	registry := session.NewRegistry(logger, clock, repository.NewMemoryMatchRepository(clock), session.DefaultConfig())
	t.Cleanup(registry.Shutdown)

	matchmaker, err := matchmaking.New(logger, clock, registry, matchmaking.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = matchmaker.Shutdown()
	})

	return NewRouter(logger, matchmaker, registry, nil)
}

func do(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	return out
}

func TestPing(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodGet, "/ping", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestJoinFlow(t *testing.T) {
	router := newTestRouter(t)

	// When: the first player joins
	rec := do(t, router, http.MethodPost, "/join", `{"playerId":"player-aaa","displayName":"Alice"}`)

	// Then: it waits
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"matched":false,"position":1,"estimatedWaitSeconds":10,"playersInQueue":1}`, rec.Body.String())

	// When: the second player joins
	rec = do(t, router, http.MethodPost, "/join", `{"playerId":"player-bbb"}`)

	// Then: it is matched as O
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[matchmaking.JoinResult](t, rec)
	require.True(t, second.Matched)
	assert.Equal(t, entity.PlayerO, second.YourSymbol)

	// When: the first player polls
	rec = do(t, router, http.MethodPost, "/join", `{"playerId":"player-aaa"}`)

	// Then: it gets the same game as X
	first := decode[matchmaking.JoinResult](t, rec)
	require.True(t, first.Matched)
	assert.Equal(t, second.GameID, first.GameID)
	assert.Equal(t, entity.PlayerX, first.YourSymbol)

	// And: the session exists
	rec = do(t, router, http.MethodGet, "/match-info?gameId="+first.GameID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.MatchInfo{GameID: first.GameID, Status: entity.StatusPlaying}, decode[entity.MatchInfo](t, rec))
}

func TestJoin_Malformed(t *testing.T) {
	testCases := map[string]string{
		"not json":       `{"playerId":`,
		"empty body":     ``,
		"bad player id":  `{"playerId":"a b"}`,
		"trailing data":  `{"playerId":"player-aaa"} {}`,
		"oversized body": `{"playerId":"player-aaa","displayName":"` + strings.Repeat("a", 2000) + `"}`,
	}

	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, newTestRouter(t), http.MethodPost, "/join", body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"malformed request"}`, rec.Body.String())
		})
	}
}

func TestLeaveAndStatus(t *testing.T) {
	router := newTestRouter(t)

	do(t, router, http.MethodPost, "/join", `{"playerId":"player-aaa"}`)

	rec := do(t, router, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"playersInQueue":1,"averageWaitSeconds":0}`, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/leave", `{"playerId":"player-aaa"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"playersInQueue":0}`, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	router := newTestRouter(t)

	for range matchmaking.DefaultConfig().RateLimit {
		require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/status", "").Code)
	}

	rec := do(t, router, http.MethodGet, "/status", "")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
}

func TestInit(t *testing.T) {
	const body = `{"gameId":"game-1","players":[
		{"id":"player-aaa","symbol":"X","token":"tx"},
		{"id":"player-bbb","symbol":"O","token":"to"}]}`

	t.Run("Init_Idempotent", func(t *testing.T) {
		router := newTestRouter(t)

		rec := do(t, router, http.MethodPost, "/init", body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())

		rec = do(t, router, http.MethodPost, "/init", body)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Init_Conflict", func(t *testing.T) {
		router := newTestRouter(t)

		require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/init", body).Code)

		other := strings.Replace(body, "player-bbb", "player-ccc", 1)
		rec := do(t, router, http.MethodPost, "/init", other)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Init_Invalid", func(t *testing.T) {
		rec := do(t, newTestRouter(t), http.MethodPost, "/init", `{"gameId":"game-1","players":[{"id":"player-aaa","symbol":"X","token":"tx"}]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMatchInfo_Errors(t *testing.T) {
	router := newTestRouter(t)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/match-info?gameId=unknown", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/match-info", "").Code)
}

func TestStatusOf(t *testing.T) {
	status, message := statusOf(context.DeadlineExceeded)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal Server Error", message)
}
