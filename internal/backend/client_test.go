package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finaccosolutions/vbastudio/internal/backend"
	"github.com/finaccosolutions/vbastudio/internal/domain/identity"
	"github.com/finaccosolutions/vbastudio/internal/render"
)

func sessionBody(t *testing.T, w http.ResponseWriter, status int, token, id, email, key string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(map[string]any{
		"token": token,
		"user": map[string]any{
			"id":         id,
			"email":      email,
			"secret_key": key,
		},
	})
	require.NoError(t, err)
}

func errorBody(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": code})
}

func TestSignInSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/signin", r.URL.Path)

		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		require.Equal(t, "a@b.c", creds.Email)
		require.Equal(t, "pw", creds.Password)

		sessionBody(t, w, http.StatusOK, "tok-1", "user-1", "a@b.c", "sk-live")
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, time.Second, nil)
	sess, err := client.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	require.Equal(t, "tok-1", sess.Token)
	require.Equal(t, "user-1", sess.Identity.ID)
	require.Equal(t, "sk-live", sess.Identity.SecretKey)
}

func TestSignInRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorBody(w, http.StatusUnauthorized, "invalid_credentials")
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, time.Second, nil)
	_, err := client.SignIn(context.Background(), "a@b.c", "wrong")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestSignUpEmailTaken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/signup", r.URL.Path)
		errorBody(w, http.StatusConflict, "email_taken")
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, time.Second, nil)
	_, err := client.SignUp(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, identity.ErrEmailTaken)
}

func TestSignUpRateLimitedCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "45")
		errorBody(w, http.StatusTooManyRequests, "rate_limited")
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, time.Second, nil)
	_, err := client.SignUp(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, identity.ErrRateLimited)

	var rle *identity.RateLimitedError
	require.ErrorAs(t, err, &rle)
	require.Equal(t, 45*time.Second, rle.RetryAfter)
}

func TestCurrentSessionSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		sessionBody(t, w, http.StatusOK, "tok-1", "user-1", "a@b.c", "")
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, time.Second, nil)
	sess, err := client.CurrentSession(context.Background(), "tok-1")
	require.NoError(t, err)
	require.False(t, sess.Identity.HasSecretKey())
}

func TestCurrentSessionExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorBody(w, http.StatusUnauthorized, "token_expired")
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, time.Second, nil)
	_, err := client.CurrentSession(context.Background(), "stale")
	require.ErrorIs(t, err, identity.ErrNotAuthenticated)
}

func TestSignOutNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/signout", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, time.Second, nil)
	require.NoError(t, client.SignOut(context.Background(), "tok-1"))
}

func TestUpdateSecretKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/profile/key", r.URL.Path)

		var body struct {
			Key string `json:"key"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "sk-new", body.Key)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, time.Second, nil)
	require.NoError(t, client.UpdateSecretKey(context.Background(), "tok-1", "sk-new"))
}

func TestDownloadWorkbook(t *testing.T) {
	payload := []byte("PK\x03\x04workbook")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/render", r.URL.Path)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var req render.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, render.OpEmitCode, req.Operation)

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, time.Second, nil)
	data, err := client.DownloadWorkbook(context.Background(), "tok-1",
		render.Request{Operation: render.OpEmitCode, Code: "Sub M()\nEnd Sub"})
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestDownloadWorkbookRequiresAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorBody(w, http.StatusUnauthorized, "token_invalid")
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, time.Second, nil)
	_, err := client.DownloadWorkbook(context.Background(), "bad",
		render.Request{Operation: render.OpEmitCode, Code: "Sub M()\nEnd Sub"})
	require.ErrorIs(t, err, identity.ErrNotAuthenticated)
}

func TestUnreachableServerIsNetworkError(t *testing.T) {
	client := backend.NewClient("http://127.0.0.1:1", 200*time.Millisecond, nil)
	_, err := client.SignIn(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, identity.ErrNetwork)
}

func TestServerErrorIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorBody(w, http.StatusInternalServerError, "internal")
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, time.Second, nil)
	_, err := client.SignIn(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, identity.ErrNetwork)
}
