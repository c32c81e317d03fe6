package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/matchmaking"
)

const maxBodyBytes = 1024

type matchmaker interface {
	Join(ctx context.Context, source, playerID, displayName string) (matchmaking.JoinResult, error)
	Leave(ctx context.Context, source, playerID string) (matchmaking.LeaveResult, error)
	Status(ctx context.Context, source string) (matchmaking.StatusResult, error)
}

type sessions interface {
	InitializeMatch(ctx context.Context, gameID string, players []entity.Admission) error
	MatchInfo(ctx context.Context, gameID string) (entity.MatchInfo, error)
}

type joinRequest struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}

type leaveRequest struct {
	PlayerID string `json:"playerId"`
}

type initRequest struct {
	GameID  string             `json:"gameId"`
	Players []entity.Admission `json:"players"`
}

type initResponse struct {
	Success bool `json:"success"`
}

type handlers struct {
	logger     *slog.Logger
	matchmaker matchmaker
	sessions   sessions
}

func (that *handlers) Ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		that.logger.Error("failed to write pong", "error", err)
	}
}

func (that *handlers) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := that.matchmaker.Join(r.Context(), sourceOf(r), req.PlayerID, req.DisplayName)
	if err != nil {
		that.fail(w, "Join", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (that *handlers) Leave(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := that.matchmaker.Leave(r.Context(), sourceOf(r), req.PlayerID)
	if err != nil {
		that.fail(w, "Leave", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (that *handlers) Status(w http.ResponseWriter, r *http.Request) {
	result, err := that.matchmaker.Status(r.Context(), sourceOf(r))
	if err != nil {
		that.fail(w, "Status", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (that *handlers) Init(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := that.sessions.InitializeMatch(r.Context(), req.GameID, req.Players); err != nil {
		that.fail(w, "Init", err)
		return
	}

	writeJSON(w, http.StatusOK, initResponse{Success: true})
}

func (that *handlers) MatchInfo(w http.ResponseWriter, r *http.Request) {
	info, err := that.sessions.MatchInfo(r.Context(), r.URL.Query().Get("gameId"))
	if err != nil {
		that.fail(w, "MatchInfo", err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// fail - logs server-side failures only; client errors are expected traffic.
func (that *handlers) fail(w http.ResponseWriter, method string, err error) {
	if status, _ := statusOf(err); status >= http.StatusInternalServerError {
		that.logger.Error("request failed", "method", method, "error", err)
	}

	writeError(w, err)
}

// decodeBody - reads a single JSON object of at most maxBodyBytes.
func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrMalformedRequest, err)
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", apperror.ErrMalformedRequest)
	}

	return nil
}

func sourceOf(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
