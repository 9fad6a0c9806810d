package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
)

// MockDirector records the bearer tokens it is handed so tests can check
// which token pair a call used
type MockDirector struct {
	mock.Mock

	mu     sync.Mutex
	tokens []string
}

func (m *MockDirector) WithBearerToken(token string) c4api.Director {
	m.mu.Lock()
	m.tokens = append(m.tokens, token)
	m.mu.Unlock()
	return m
}

func (m *MockDirector) WithTimeout(d time.Duration) c4api.Director {
	return m
}

func (m *MockDirector) Tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tokens...)
}

func (m *MockDirector) AllItems(ctx context.Context) ([]c4api.Item, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]c4api.Item)
	return items, args.Error(1)
}

func (m *MockDirector) ItemInfo(ctx context.Context, itemID int) ([]c4api.Item, error) {
	args := m.Called(ctx, itemID)
	items, _ := args.Get(0).([]c4api.Item)
	return items, args.Error(1)
}

func (m *MockDirector) AllItemVariableValues(ctx context.Context, varNames []string) ([]c4api.VariableValue, error) {
	args := m.Called(ctx, varNames)
	values, _ := args.Get(0).([]c4api.VariableValue)
	return values, args.Error(1)
}

func (m *MockDirector) ItemVariableValues(ctx context.Context, itemID int, varNames []string) ([]c4api.VariableValue, error) {
	args := m.Called(ctx, itemID, varNames)
	values, _ := args.Get(0).([]c4api.VariableValue)
	return values, args.Error(1)
}

func (m *MockDirector) UIConfiguration(ctx context.Context) (*c4api.UIConfiguration, error) {
	args := m.Called(ctx)
	cfg, _ := args.Get(0).(*c4api.UIConfiguration)
	return cfg, args.Error(1)
}

func (m *MockDirector) SendCommand(ctx context.Context, itemID int, command string, params map[string]interface{}) error {
	args := m.Called(ctx, itemID, command, params)
	return args.Error(0)
}

type MockAccount struct {
	mock.Mock
}

func (m *MockAccount) WithBearerToken(token string) c4api.Account {
	return m
}

func (m *MockAccount) WithTimeout(d time.Duration) c4api.Account {
	return m
}

func (m *MockAccount) BearerToken(ctx context.Context, username string, password string) (string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.Error(1)
}

func (m *MockAccount) Controllers(ctx context.Context) ([]c4api.Controller, error) {
	args := m.Called(ctx)
	controllers, _ := args.Get(0).([]c4api.Controller)
	return controllers, args.Error(1)
}

func (m *MockAccount) DirectorBearerToken(ctx context.Context, controllerCommonName string) (c4api.DirectorToken, error) {
	args := m.Called(ctx, controllerCommonName)
	token, _ := args.Get(0).(c4api.DirectorToken)
	return token, args.Error(1)
}
