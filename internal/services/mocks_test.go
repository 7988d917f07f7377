package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tradewatch/backend/internal/models"
)

type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) GetSession(ctx context.Context, identifier string) (*models.UserSession, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserSession), args.Error(1)
}

func (m *MockLedgerStore) PutSession(ctx context.Context, sess *models.UserSession) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *MockLedgerStore) SetActive(ctx context.Context, identifier string, active bool) error {
	args := m.Called(ctx, identifier, active)
	return args.Error(0)
}

func (m *MockLedgerStore) ListActiveSessions(ctx context.Context) ([]models.UserSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserSession), args.Error(1)
}

func (m *MockLedgerStore) AppendEntry(ctx context.Context, identifier string, kind models.EntryKind, amount int64) (*models.LedgerEntry, error) {
	args := m.Called(ctx, identifier, kind, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerEntry), args.Error(1)
}

func (m *MockLedgerStore) SumDeltas(ctx context.Context, identifier string) (int64, error) {
	args := m.Called(ctx, identifier)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerStore) ListEntries(ctx context.Context, identifier string) ([]models.LedgerEntry, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LedgerEntry), args.Error(1)
}

func (m *MockLedgerStore) DeleteEntries(ctx context.Context, identifier string) error {
	args := m.Called(ctx, identifier)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, identifier, text string) error {
	args := m.Called(ctx, identifier, text)
	return args.Error(0)
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Register(identifier string, interval time.Duration) {
	m.Called(identifier, interval)
}

func (m *MockScheduler) Deregister(identifier string) {
	m.Called(identifier)
}
