package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/repository"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/session"
)

const (
	gameID  = "game-ws-1"
	playerX = "player-x1"
	playerO = "player-o1"
	tokenX  = "token-for-x"
	tokenO  = "token-for-o"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClock()

	registry := session.NewRegistry(logger, clock, repository.NewMemoryMatchRepository(clock), session.DefaultConfig())
	t.Cleanup(registry.Shutdown)

	err := registry.InitializeMatch(context.Background(), gameID, []entity.Admission{
		{PlayerID: playerX, Symbol: entity.PlayerX, Token: tokenX},
		{PlayerID: playerO, Symbol: entity.PlayerO, Token: tokenO},
	})
	require.NoError(t, err)

	router := mux.NewRouter()
	router.Handle("/ws", New(logger, registry, DefaultConfig()))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server
}

func wsURL(server *httptest.Server, game, player, token string) string {
	query := url.Values{}
	query.Set("gameId", game)
	query.Set("playerId", player)
	query.Set("token", token)

	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?" + query.Encode()
}

func dial(t *testing.T, server *httptest.Server, player, token string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server, gameID, player, token), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

// readFrame - skips frames until one of the wanted type arrives.
func readFrame(t *testing.T, conn *websocket.Conn, frameType string, payload any) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var envelope entity.Envelope
		require.NoError(t, json.Unmarshal(data, &envelope))

		if envelope.Type == frameType {
			require.NoError(t, json.Unmarshal(envelope.Payload, payload))
			return
		}
	}
}

func TestServer_RefusesUpgrade(t *testing.T) {
	server := newTestServer(t)

	testCases := map[string]struct {
		url    string
		status int
	}{
		"missing token":   {url: wsURL(server, gameID, playerX, ""), status: http.StatusBadRequest},
		"invalid game id": {url: wsURL(server, "bad game", playerX, tokenX), status: http.StatusBadRequest},
		"wrong token":     {url: wsURL(server, gameID, playerX, tokenO), status: http.StatusUnauthorized},
		"unknown player":  {url: wsURL(server, gameID, "stranger1", tokenX), status: http.StatusUnauthorized},
		"unknown game":    {url: wsURL(server, "other-game", playerX, tokenX), status: http.StatusUnauthorized},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			// When: a client tries to connect with bad credentials
			conn, resp, err := websocket.DefaultDialer.Dial(tc.url, nil)

			// Then: the handshake fails with the expected status
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			assert.Nil(t, conn)
			require.NotNil(t, resp)
			assert.Equal(t, tc.status, resp.StatusCode)
			_ = resp.Body.Close()
		})
	}
}

func TestServer_PlaysMoves(t *testing.T) {
	server := newTestServer(t)

	// Given: X connects first
	connX := dial(t, server, playerX, tokenX)

	var state entity.GameStatePayload
	readFrame(t, connX, entity.TypeGameState, &state)
	assert.Equal(t, entity.PlayerX, state.YourSymbol)
	assert.False(t, state.OpponentConnected)

	// When: O connects
	connO := dial(t, server, playerO, tokenO)

	// Then: both see each other
	readFrame(t, connX, entity.TypeGameState, &state)
	assert.True(t, state.OpponentConnected)

	readFrame(t, connO, entity.TypeGameState, &state)
	assert.Equal(t, entity.PlayerO, state.YourSymbol)
	assert.True(t, state.OpponentConnected)

	// When: X makes a move
	move := `{"type":"MAKE_MOVE","payload":{"boardIndex":4,"cellIndex":4,"sequenceNumber":1}}`
	require.NoError(t, connX.WriteMessage(websocket.TextMessage, []byte(move)))

	// Then: both receive the result
	for _, conn := range []*websocket.Conn{connX, connO} {
		var result entity.MoveResultPayload
		readFrame(t, conn, entity.TypeMoveResult, &result)

		assert.True(t, result.Valid)
		assert.Equal(t, entity.PlayerX, result.Board.Cells[4][4])
		assert.Equal(t, 4, result.Board.ActiveBoard)
	}

	// When: O drops
	require.NoError(t, connO.Close())

	// Then: X is told
	readFrame(t, connX, entity.TypeGameState, &state)
	assert.False(t, state.OpponentConnected)
}

func TestServer_ReconnectReplacesConnection(t *testing.T) {
	server := newTestServer(t)

	// Given: X is connected
	first := dial(t, server, playerX, tokenX)

	var state entity.GameStatePayload
	readFrame(t, first, entity.TypeGameState, &state)

	// When: X connects again
	second := dial(t, server, playerX, tokenX)
	readFrame(t, second, entity.TypeGameState, &state)

	// Then: the first connection is closed by the server
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))

	for {
		_, _, err := first.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
	}

	assert.Equal(t, entity.PlayerX, state.YourSymbol)
}
