package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"picturehub/internal/apperr"
	"picturehub/internal/domain"
)

// Response is the envelope of every API reply.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Authenticator resolves the caller of a request.
type Authenticator interface {
	VerifyToken(r *http.Request) (*domain.User, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Code: 0, Message: "ok", Data: data})
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	public := apperr.Public(err)
	if public.Kind == apperr.KindInternal {
		log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, public.Kind.HTTPStatus(), Response{Code: public.Kind.Code(), Message: public.Message})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, Response{Code: 40100, Message: "unauthorized"})
}

// requireUser authenticates the request or answers 401.
func requireUser(w http.ResponseWriter, r *http.Request, a Authenticator) (*domain.User, bool) {
	user, err := a.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return nil, false
	}
	return user, true
}

// optionalUser lets anonymous requests through; a malformed token is still 401.
func optionalUser(w http.ResponseWriter, r *http.Request, a Authenticator) (*domain.User, bool) {
	if r.Header.Get("Authorization") == "" {
		return nil, true
	}
	return requireUser(w, r, a)
}

func decodeJSON(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return apperr.InvalidInput("invalid request body")
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidInput("invalid id")
	}
	return id, nil
}

func optionalInt64(value string) (*int64, error) {
	if value == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, errors.New("not a number")
	}
	return &n, nil
}
