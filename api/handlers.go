// Package api exposes the HTTP surface: auth middleware, route wiring,
// and thin handlers that translate between JSON and the services.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"puzzle-pals-server/apperrors"
	"puzzle-pals-server/auth"
	"puzzle-pals-server/config"
	"puzzle-pals-server/leaderboard"
	"puzzle-pals-server/report"
	"puzzle-pals-server/results"
	"puzzle-pals-server/social"
	"puzzle-pals-server/users"
)

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	VerifyToken(token string) (jwt.MapClaims, error)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	Config   *config.Config
	Verifier TokenVerifier

	Users   *users.Service
	Social  *social.Service
	Results *results.Service
	Boards  *leaderboard.Builder
	Reports *report.Service

	log *slog.Logger
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(cfg *config.Config, verifier TokenVerifier,
	u *users.Service, s *social.Service, r *results.Service,
	b *leaderboard.Builder, rp *report.Service) *Handler {
	return &Handler{
		Config:   cfg,
		Verifier: verifier,
		Users:    u,
		Social:   s,
		Results:  r,
		Boards:   b,
		Reports:  rp,
		log:      slog.Default().With("tag", "api"),
	}
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/user", h.withAuth(h.CreateUser))
	mux.HandleFunc("GET /api/user", h.withAuth(h.GetUser))
	mux.HandleFunc("PUT /api/user", h.withAuth(h.UpdateUser))
	mux.HandleFunc("GET /api/user/status", h.withAuth(h.UserStatus))
	mux.HandleFunc("GET /api/user/search", h.withAuth(h.SearchUsers))

	mux.HandleFunc("POST /api/friend/request", h.withAuth(h.FriendRequest))
	mux.HandleFunc("POST /api/friend/accept", h.withAuth(h.FriendAccept))
	mux.HandleFunc("DELETE /api/friend/{uidf}", h.withAuth(h.FriendRemove))
	mux.HandleFunc("GET /api/friend/list", h.withAuth(h.FriendList))

	mux.HandleFunc("POST /api/result/log/start", h.withAuth(h.StartInterval))
	mux.HandleFunc("POST /api/result/log/end", h.withAuth(h.CloseInterval))
	mux.HandleFunc("POST /api/result", h.withAuth(h.SubmitResult))

	mux.HandleFunc("GET /api/leaderboard/daily/{pid}", h.withAuth(h.DailyLeaderboard))
	mux.HandleFunc("GET /api/leaderboard/monthly/{month}", h.withAuth(h.MonthlyLeaderboard))

	mux.HandleFunc("POST /api/report", h.withAuth(h.FileReport))

	// Preflight for every route.
	mux.HandleFunc("OPTIONS /api/", func(w http.ResponseWriter, r *http.Request) {
		CORS(w, r)
	})

	return mux
}

// CORS sets CORS headers on the response. Call before writing body.
func CORS(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// withAuth verifies the bearer token, bounds the request with the
// configured timeout, and passes the caller's uid to the handler.
func (h *Handler) withAuth(next func(w http.ResponseWriter, r *http.Request, uid string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if CORS(w, r) {
			return
		}
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}
		claims, err := h.Verifier.VerifyToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		uid := auth.UserIDFromClaims(claims)
		if uid == "" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		timeout := time.Duration(h.Config.RequestTimeoutMS) * time.Millisecond
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next(w, r.WithContext(ctx), uid)
	}
}

// writeJSON encodes v with a JSON content type.
func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("encode response", "error", err)
	}
}

// writeError maps service errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperrors.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, apperrors.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		h.log.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.ErrInvalidInput
	}
	return nil
}

type statusResponse struct {
	Status string `json:"Status"`
}

var okStatus = statusResponse{Status: "OK"}

// CreateUser writes a signup stub for the caller if none exists.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request, uid string) {
	if err := h.Users.Create(r.Context(), uid); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, okStatus)
}

// GetUser returns the caller's profile.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request, uid string) {
	item, err := h.Users.Get(r.Context(), uid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, item)
}

// UpdateUser applies profile field updates from the request body.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request, uid string) {
	var fields map[string]string
	if err := decode(r, &fields); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Users.Update(r.Context(), uid, fields); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, okStatus)
}

// UserStatus reports whether the caller has a profile record yet.
func (h *Handler) UserStatus(w http.ResponseWriter, r *http.Request, uid string) {
	exists, err := h.Users.Exists(r.Context(), uid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]bool{"Exists": exists})
}

// SearchUsers finds profiles by name prefix.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request, uid string) {
	matches, err := h.Users.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, matches)
}

type friendRequest struct {
	UIDF string `json:"UIDF"`
}

// FriendRequest creates a pending friend request to the given user.
func (h *Handler) FriendRequest(w http.ResponseWriter, r *http.Request, uid string) {
	var body friendRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Social.Request(r.Context(), uid, body.UIDF); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, okStatus)
}

// FriendAccept confirms a pending request from the given user.
func (h *Handler) FriendAccept(w http.ResponseWriter, r *http.Request, uid string) {
	var body friendRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Social.Accept(r.Context(), uid, body.UIDF); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, okStatus)
}

// FriendRemove deletes the relationship with the given user in any state.
func (h *Handler) FriendRemove(w http.ResponseWriter, r *http.Request, uid string) {
	if err := h.Social.Remove(r.Context(), uid, r.PathValue("uidf")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, okStatus)
}

// FriendList returns the caller's relationships merged with profiles.
func (h *Handler) FriendList(w http.ResponseWriter, r *http.Request, uid string) {
	list, err := h.Social.List(r.Context(), uid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, list)
}

type intervalRequest struct {
	PID                   string `json:"PID"`
	DateTimeStartOnDevice string `json:"DateTimeStartOnDevice"`
	DateTimeEndOnDevice   string `json:"DateTimeEndOnDevice"`
	FlagClosed            bool   `json:"FlagClosed"`
}

// StartInterval opens a solve interval.
func (h *Handler) StartInterval(w http.ResponseWriter, r *http.Request, uid string) {
	var body intervalRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Results.StartInterval(r.Context(), uid, body.PID, body.DateTimeStartOnDevice); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, okStatus)
}

// CloseInterval ends a solve interval.
func (h *Handler) CloseInterval(w http.ResponseWriter, r *http.Request, uid string) {
	var body intervalRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	err := h.Results.CloseInterval(r.Context(), uid, body.PID,
		body.DateTimeStartOnDevice, body.DateTimeEndOnDevice, body.FlagClosed)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, okStatus)
}

type submitRequest struct {
	PID           string `json:"PID"`
	EncodedResult string `json:"EncodedResult"`
	HintsUsed     int    `json:"HintsUsed"`
	Description   string `json:"Description"`
}

type submitResponse struct {
	Status             string `json:"Status"`
	TimeTakenInSeconds int    `json:"TimeTakenInSeconds"`
}

// SubmitResult finalizes a puzzle: aggregates the logged intervals and
// stores the result record.
func (h *Handler) SubmitResult(w http.ResponseWriter, r *http.Request, uid string) {
	var body submitRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	timeTaken, err := h.Results.Submit(r.Context(), uid, body.PID,
		body.EncodedResult, body.HintsUsed, body.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, submitResponse{Status: "OK", TimeTakenInSeconds: timeTaken})
}

// DailyLeaderboard returns the daily board for one puzzle.
func (h *Handler) DailyLeaderboard(w http.ResponseWriter, r *http.Request, uid string) {
	view, err := h.Boards.Daily(r.Context(), uid, r.PathValue("pid"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, view)
}

// MonthlyLeaderboard returns the four monthly boards for one month.
func (h *Handler) MonthlyLeaderboard(w http.ResponseWriter, r *http.Request, uid string) {
	view, err := h.Boards.Monthly(r.Context(), uid, r.PathValue("month"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, view)
}

type reportRequest struct {
	Email   string `json:"Email"`
	Message string `json:"Message"`
}

// FileReport stores an issue report from the caller.
func (h *Handler) FileReport(w http.ResponseWriter, r *http.Request, uid string) {
	var body reportRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	id, err := h.Reports.File(r.Context(), uid, body.Email, body.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]string{"Status": "OK", "ID": id})
}
