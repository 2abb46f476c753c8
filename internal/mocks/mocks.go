// Package mocks provides hand-written testify mocks for the interfaces
// shared across domain tests.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/finaccosolutions/vbastudio/internal/domain/identity"
	"github.com/finaccosolutions/vbastudio/internal/genai"
)

// Provider is a mock for identity.Provider.
type Provider struct {
	mock.Mock
}

func (m *Provider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	args := m.Called(ctx, email, password)
	if sess, ok := args.Get(0).(*identity.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Provider) SignUp(ctx context.Context, email, password string) (*identity.Session, error) {
	args := m.Called(ctx, email, password)
	if sess, ok := args.Get(0).(*identity.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Provider) SignOut(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *Provider) CurrentSession(ctx context.Context, token string) (*identity.Session, error) {
	args := m.Called(ctx, token)
	if sess, ok := args.Get(0).(*identity.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Provider) UpdateSecretKey(ctx context.Context, token, key string) error {
	args := m.Called(ctx, token, key)
	return args.Error(0)
}

// SnapshotStore is a mock for identity.SnapshotStore.
type SnapshotStore struct {
	mock.Mock
}

func (m *SnapshotStore) Load() (*identity.Session, error) {
	args := m.Called()
	if sess, ok := args.Get(0).(*identity.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SnapshotStore) Save(sess identity.Session) error {
	args := m.Called(sess)
	return args.Error(0)
}

func (m *SnapshotStore) Clear() error {
	args := m.Called()
	return args.Error(0)
}

// Generator is a mock for the chat service's generation client.
type Generator struct {
	mock.Mock
}

func (m *Generator) Generate(ctx context.Context, key string, req genai.Request) (*genai.Result, error) {
	args := m.Called(ctx, key, req)
	if res, ok := args.Get(0).(*genai.Result); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}
