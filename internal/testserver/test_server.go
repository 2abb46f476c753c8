// Package testserver stands up a full in-process backend for tests:
// in-memory SQLite, real services, real router, httptest transport.
package testserver

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/finaccosolutions/vbastudio/internal/domain/accounts"
	"github.com/finaccosolutions/vbastudio/internal/domain/projects"
	"github.com/finaccosolutions/vbastudio/internal/httpapi"
	"github.com/finaccosolutions/vbastudio/internal/metrics"
	"github.com/finaccosolutions/vbastudio/internal/sqlite"
)

// TestServer is one running backend instance.
type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Accounts *accounts.Service
	Projects *projects.Service
}

// Options tweak the backend under test.
type Options struct {
	// SignupBurst caps signups per address; zero keeps the permissive
	// test default.
	SignupBurst int
	TokenTTL    time.Duration
}

// New starts a backend and registers its teardown with t.
func New(t *testing.T, opts Options) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	ttl := opts.TokenTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	accountsSvc := accounts.NewService(
		sqlite.NewUserRepository(db),
		sqlite.NewAuthSessionRepository(db),
		"test-secret", ttl, nil)
	projectsSvc := projects.NewService(sqlite.NewProjectRepository(db), nil)

	limiterCfg := httpapi.DefaultRateLimiterConfig()
	// Tests hammer the API from one address; keep the general budget
	// out of the way unless a test opts in to the signup cap.
	limiterCfg.GeneralBurst = 10000
	limiterCfg.GeneralRate = rate.Limit(10000)
	if opts.SignupBurst > 0 {
		limiterCfg.SignupBurst = opts.SignupBurst
	} else {
		limiterCfg.SignupBurst = 10000
		limiterCfg.SignupRate = rate.Limit(10000)
	}
	limiter := httpapi.NewRateLimiter(limiterCfg)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	api := httpapi.NewServer(accountsSvc, projectsSvc, limiter, collector, reg, nil)
	server := httptest.NewServer(api.Router())

	ts := &TestServer{
		Server:   server,
		DB:       db,
		Accounts: accountsSvc,
		Projects: projectsSvc,
	}

	t.Cleanup(func() {
		server.Close()
		limiter.Stop()
		_ = db.Close()
	})

	return ts
}

// URL returns the server's base URL.
func (ts *TestServer) URL() string { return ts.Server.URL }

// SignUp registers an account directly against the service layer.
func (ts *TestServer) SignUp(t *testing.T, email, password string) *accounts.Session {
	t.Helper()
	sess, err := ts.Accounts.Register(context.Background(), email, password)
	require.NoError(t, err)
	return sess
}
