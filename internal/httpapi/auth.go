package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finaccosolutions/vbastudio/internal/domain/accounts"
)

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func toSessionBody(sess *accounts.Session) sessionBody {
	return sessionBody{
		Token: sess.Token,
		User: sessionUser{
			ID:        sess.UserID,
			Email:     sess.Email,
			SecretKey: sess.SecretKey,
		},
	}
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var creds credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	sess, err := s.accounts.Register(r.Context(), creds.Email, creds.Password)
	switch {
	case errors.Is(err, accounts.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", "email is already registered")
	case errors.Is(err, accounts.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid_email", "email is not valid")
	case errors.Is(err, accounts.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "weak_password", "password is too short")
	case err != nil:
		s.internalError(w, "signup", err)
	default:
		s.collector.SessionIssued()
		writeJSON(w, http.StatusCreated, toSessionBody(sess))
	}
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var creds credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	sess, err := s.accounts.Login(r.Context(), creds.Email, creds.Password)
	switch {
	case errors.Is(err, accounts.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is wrong")
	case err != nil:
		s.internalError(w, "signin", err)
	default:
		s.collector.SessionIssued()
		writeJSON(w, http.StatusOK, toSessionBody(sess))
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing_token", "authorization required")
		return
	}

	sess, err := s.accounts.CurrentSession(r.Context(), token)
	switch {
	case errors.Is(err, accounts.ErrTokenRevoked):
		writeError(w, http.StatusUnauthorized, "token_expired", "session has expired")
	case errors.Is(err, accounts.ErrTokenInvalid):
		writeError(w, http.StatusUnauthorized, "token_invalid", "session is not valid")
	case err != nil:
		s.internalError(w, "session", err)
	default:
		writeJSON(w, http.StatusOK, toSessionBody(sess))
	}
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing_token", "authorization required")
		return
	}

	err := s.accounts.Logout(r.Context(), token)
	switch {
	case errors.Is(err, accounts.ErrTokenInvalid), errors.Is(err, accounts.ErrTokenRevoked):
		writeError(w, http.StatusUnauthorized, "token_invalid", "session is not valid")
	case err != nil:
		s.internalError(w, "signout", err)
	default:
		s.collector.SessionRevoked()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleUpdateKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	if err := s.accounts.UpdateSecretKey(r.Context(), userID(r.Context()), body.Key); err != nil {
		s.internalError(w, "update key", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal server error")
}
