package httpapi

import (
	"encoding/json"
	"net/http"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}

type sessionUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	SecretKey string `json:"secret_key"`
}

type sessionBody struct {
	Token string      `json:"token"`
	User  sessionUser `json:"user"`
}
