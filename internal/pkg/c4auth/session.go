package c4auth

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
	"github.com/jake-scott/control4-bridge/internal/pkg/metrics"
)

type Config struct {
	Account        c4api.Account
	Username       string
	Password       string
	ControllerName string

	// StateFile, if set, receives every new token pair
	StateFile string
}

// Session owns the current token pair
type Session struct {
	cfg Config

	mu             sync.Mutex
	creds          Credentials
	controllerName string
}

func NewSession(cfg Config, initial Credentials) *Session {
	return &Session{
		cfg:            cfg,
		creds:          initial,
		controllerName: cfg.ControllerName,
	}
}

// Credentials returns a snapshot of the current token pair
func (s *Session) Credentials() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.creds
}

// Refresh logs in to the account again and fetches a new director token.
// stale is the pair the caller was using when it saw the auth failure: if
// another caller has already replaced it, the current pair is returned
// without a new login.
func (s *Session) Refresh(ctx context.Context, stale Credentials) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds.DirectorToken != stale.DirectorToken {
		logging.Logger(ctx).Debug("token pair already refreshed")
		return s.creds, nil
	}

	creds, err := s.login(ctx)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return Credentials{}, err
	}

	metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	s.creds = creds
	logging.Logger(ctx).Infof("refreshed control4 tokens for controller %s, director token valid until %s",
		s.controllerName, creds.DirectorExpiry)

	if s.cfg.StateFile != "" {
		st := State{Username: s.cfg.Username, ControllerName: s.controllerName, Credentials: creds}
		if err := st.Save(s.cfg.StateFile); err != nil {
			logging.Logger(ctx).WithError(err).Warn("cannot save token state")
		}
	}

	return creds, nil
}

func (s *Session) login(ctx context.Context) (Credentials, error) {
	if s.cfg.Account == nil {
		return Credentials{}, errors.New("no account client configured, cannot refresh tokens")
	}

	accountToken, err := s.cfg.Account.BearerToken(ctx, s.cfg.Username, s.cfg.Password)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "refreshing account token")
	}

	account := s.cfg.Account.WithBearerToken(accountToken)

	if s.controllerName == "" {
		controllers, err := account.Controllers(ctx)
		if err != nil {
			return Credentials{}, errors.Wrap(err, "discovering controller")
		}
		if len(controllers) == 0 {
			return Credentials{}, errors.New("no controllers registered to the account")
		}
		s.controllerName = controllers[0].CommonName
	}

	dt, err := account.DirectorBearerToken(ctx, s.controllerName)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "refreshing director token")
	}

	return Credentials{
		AccountToken:   accountToken,
		DirectorToken:  dt.Token,
		DirectorExpiry: dt.Expiry,
	}, nil
}
