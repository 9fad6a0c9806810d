package cmd

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
	"github.com/jake-scott/control4-bridge/internal/pkg/c4auth"
	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the Control4 account and save a director token",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doLogin(); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("control4.username", "control4.password", "control4.token-state-file")
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func doLogin() error {
	username := viper.GetString("control4.username")
	controller := viper.GetString("control4.controller-name")
	stateFile := expandPath(viper.GetString("control4.token-state-file"))

	ctx := context.Background()
	account := newAccount()

	accountToken, err := account.BearerToken(ctx, username, viper.GetString("control4.password"))
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	account = account.WithBearerToken(accountToken)

	controllers, err := account.Controllers(ctx)
	if err != nil {
		return errors.Wrap(err, "listing controllers")
	}
	for _, c := range controllers {
		fmt.Printf("controller %s (%s)\n", c.CommonName, c.Name)
	}

	if controller == "" {
		if len(controllers) == 0 {
			return errors.New("no controllers registered to the account")
		}
		controller = controllers[0].CommonName
	}

	dt, err := account.DirectorBearerToken(ctx, controller)
	if err != nil {
		return errors.Wrapf(err, "fetching director token for %s", controller)
	}

	st := c4auth.State{
		Username:       username,
		ControllerName: controller,
		Credentials:    credentialsOf(accountToken, dt),
	}
	if err := st.Save(stateFile); err != nil {
		return err
	}

	logging.Logger(nil).Debugf("saved token state: %s", st)
	fmt.Printf("director token for %s valid until %s, saved to %s\n", controller, dt.Expiry.Local(), stateFile)

	return nil
}

func credentialsOf(accountToken string, dt c4api.DirectorToken) c4auth.Credentials {
	return c4auth.Credentials{
		AccountToken:   accountToken,
		DirectorToken:  dt.Token,
		DirectorExpiry: dt.Expiry,
	}
}
