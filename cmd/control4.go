package cmd

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
	"github.com/jake-scott/control4-bridge/internal/pkg/c4auth"
	"github.com/jake-scott/control4-bridge/internal/pkg/director"
	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
)

// Connection settings shared by every command that talks to the director
func init() {
	flags := rootCmd.PersistentFlags()

	flags.String("director-host", "", "director host name or address")
	flags.Bool("verify-tls", false, "verify the director's TLS certificate")
	flags.Duration("api-timeout", time.Second*10, "maximum duration of a director or account API call, eg. 1m or 10s")
	flags.String("account-url", c4api.DefaultAccountURL, "Control4 account API base URL")
	flags.String("username", "", "Control4 account user name")
	flags.String("password", "", "Control4 account password")
	flags.String("controller", "", "controller common name (default: first controller on the account)")
	flags.String("token-state-file", "", "file to keep account and director tokens between runs")

	errPanic(viper.GetViper().BindPFlag("director.host", flags.Lookup("director-host")))
	errPanic(viper.GetViper().BindPFlag("director.verify-tls", flags.Lookup("verify-tls")))
	errPanic(viper.GetViper().BindPFlag("director.api-timeout", flags.Lookup("api-timeout")))
	errPanic(viper.GetViper().BindPFlag("control4.account-url", flags.Lookup("account-url")))
	errPanic(viper.GetViper().BindPFlag("control4.username", flags.Lookup("username")))
	errPanic(viper.GetViper().BindPFlag("control4.password", flags.Lookup("password")))
	errPanic(viper.GetViper().BindPFlag("control4.controller-name", flags.Lookup("controller")))
	errPanic(viper.GetViper().BindPFlag("control4.token-state-file", flags.Lookup("token-state-file")))
}

func newAccount() c4api.Account {
	return c4api.NewLiveAccount(viper.GetString("control4.account-url")).
		WithTimeout(viper.GetDuration("director.api-timeout"))
}

// loadState reads the token state file.  A missing file is not an error.
func loadState() (c4auth.State, error) {
	var st c4auth.State

	stateFile := expandPath(viper.GetString("control4.token-state-file"))
	if stateFile == "" {
		return st, nil
	}

	if err := st.Load(stateFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Logger(nil).Debugf("no token state in %s yet", stateFile)
			return c4auth.State{}, nil
		}
		return st, err
	}

	logging.Logger(nil).Debugf("loaded token state: %s", st)
	return st, nil
}

// newSession builds the token session from config and the state file,
// logging in if there is no usable director token
func newSession(ctx context.Context) (*c4auth.Session, error) {
	st, err := loadState()
	if err != nil {
		return nil, err
	}

	username := viper.GetString("control4.username")
	controller := viper.GetString("control4.controller-name")

	st, controller = usableState(ctx, st, username, controller)

	session := c4auth.NewSession(c4auth.Config{
		Account:        newAccount(),
		Username:       username,
		Password:       viper.GetString("control4.password"),
		ControllerName: controller,
		StateFile:      expandPath(viper.GetString("control4.token-state-file")),
	}, st.Credentials)

	if creds := session.Credentials(); creds.DirectorToken == "" {
		logging.Logger(ctx).Info("no director token, logging in to the control4 account")
		if _, err := session.Refresh(ctx, creds); err != nil {
			return nil, errors.Wrap(err, "logging in")
		}
	}

	return session, nil
}

// usableState drops saved tokens issued for another user or controller and
// falls back to the saved controller name when none is configured
func usableState(ctx context.Context, st c4auth.State, username, controller string) (c4auth.State, string) {
	switch {
	case st.Username != "" && st.Username != username:
		logging.Logger(ctx).Warnf("ignoring token state for user %s", st.Username)
		st = c4auth.State{}
	case controller != "" && st.ControllerName != "" && st.ControllerName != controller:
		logging.Logger(ctx).Warnf("ignoring token state for controller %s", st.ControllerName)
		st = c4auth.State{}
	}

	if controller == "" {
		controller = st.ControllerName
	}

	return st, controller
}

func newDirectorHelper(session *c4auth.Session) *director.Helper {
	d := c4api.NewLiveDirector(viper.GetString("director.host"), viper.GetBool("director.verify-tls")).
		WithTimeout(viper.GetDuration("director.api-timeout"))

	return director.NewHelper(session, d)
}
