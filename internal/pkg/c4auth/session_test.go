package c4auth

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
	"github.com/jake-scott/control4-bridge/internal/pkg/c4api/mocks"
)

func TestStateRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "state.json")
	expiry := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	in := State{
		Username:       "user@example.com",
		ControllerName: "control4_core1_000FFF",
		Credentials:    Credentials{AccountToken: "acct", DirectorToken: "dir", DirectorExpiry: expiry},
	}
	require.NoError(t, in.Save(file))

	var out State
	require.NoError(t, out.Load(file))
	assert.Equal(t, in.Username, out.Username)
	assert.Equal(t, in.ControllerName, out.ControllerName)
	assert.Equal(t, "dir", out.Credentials.DirectorToken)
	assert.True(t, expiry.Equal(out.Credentials.DirectorExpiry))
}

func TestStateLoadMissing(t *testing.T) {
	var s State
	assert.Error(t, s.Load(filepath.Join(t.TempDir(), "nope.json")))
}

func TestCredentialsStringHidesTokens(t *testing.T) {
	c := Credentials{AccountToken: "account-secret", DirectorToken: "director-secret"}
	assert.NotContains(t, c.String(), "account-secret")
	assert.NotContains(t, c.String(), "director-secret")
}

func TestRefreshReplacesPair(t *testing.T) {
	file := filepath.Join(t.TempDir(), "state.json")

	acct := &mocks.MockAccount{}
	acct.On("BearerToken", mock.Anything, "user", "pass").Return("acct-2", nil).Once()
	acct.On("Controllers", mock.Anything).Return([]c4api.Controller{{CommonName: "core1"}}, nil).Once()
	acct.On("DirectorBearerToken", mock.Anything, "core1").
		Return(c4api.DirectorToken{Token: "dir-2", Expiry: time.Now().Add(time.Hour)}, nil).Once()

	s := NewSession(Config{Account: acct, Username: "user", Password: "pass", StateFile: file},
		Credentials{AccountToken: "acct-1", DirectorToken: "dir-1"})

	stale := s.Credentials()
	creds, err := s.Refresh(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, "acct-2", creds.AccountToken)
	assert.Equal(t, "dir-2", creds.DirectorToken)
	assert.Equal(t, creds, s.Credentials())

	// the old snapshot is untouched
	assert.Equal(t, "dir-1", stale.DirectorToken)

	var saved State
	require.NoError(t, saved.Load(file))
	assert.Equal(t, "core1", saved.ControllerName)
	assert.Equal(t, "dir-2", saved.Credentials.DirectorToken)

	acct.AssertExpectations(t)
}

func TestConcurrentRefreshLogsInOnce(t *testing.T) {
	acct := &mocks.MockAccount{}
	acct.On("BearerToken", mock.Anything, "user", "pass").Return("acct-2", nil).Once()
	acct.On("DirectorBearerToken", mock.Anything, "core1").
		Return(c4api.DirectorToken{Token: "dir-2"}, nil).Once()

	s := NewSession(Config{Account: acct, Username: "user", Password: "pass", ControllerName: "core1"},
		Credentials{DirectorToken: "dir-1"})
	stale := s.Credentials()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			creds, err := s.Refresh(context.Background(), stale)
			assert.NoError(t, err)
			assert.Equal(t, "dir-2", creds.DirectorToken)
		}()
	}
	wg.Wait()

	acct.AssertExpectations(t)
	acct.AssertNumberOfCalls(t, "BearerToken", 1)
}

func TestRefreshFailureKeepsOldPair(t *testing.T) {
	acct := &mocks.MockAccount{}
	acct.On("BearerToken", mock.Anything, "user", "bad").
		Return("", errors.Wrap(c4api.ErrBadCredentials, "authenticating account")).Once()

	s := NewSession(Config{Account: acct, Username: "user", Password: "bad", ControllerName: "core1"},
		Credentials{DirectorToken: "dir-1"})

	_, err := s.Refresh(context.Background(), s.Credentials())
	require.Error(t, err)
	assert.True(t, errors.Is(err, c4api.ErrBadCredentials))
	assert.Equal(t, "dir-1", s.Credentials().DirectorToken)
}
