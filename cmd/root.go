package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
)

const defaultConfigName = ".control4-bridge"

var (
	_cfgFile string
	_debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "control4-bridge",
	Short: "Expose Control4 rooms and media devices over HTTP and MQTT",
	Long: `control4-bridge polls a Control4 director for room and media device
state and exposes them as media player entities through a JSON API and,
optionally, an MQTT broker.`,
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _debug {
			logrus.SetLevel(logrus.DebugLevel)
		}

		return logging.Configure(viper.GetViper())
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&_cfgFile, "config", "", "config file (default $HOME/"+defaultConfigName+".yaml)")
	rootCmd.PersistentFlags().BoolVar(&_debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("log-location", "stderr", "log destination: stderr, stdout or a file name")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	errPanic(viper.GetViper().BindPFlag("logging.location", rootCmd.PersistentFlags().Lookup("log-location")))
	errPanic(viper.GetViper().BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format")))
}

func initConfig() {
	if _cfgFile != "" {
		viper.SetConfigFile(_cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			logging.Logger(nil).WithError(err).Fatal("finding home directory")
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(defaultConfigName)
	}

	viper.SetEnvPrefix("C4BRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logging.Logger(nil).Debugf("using config file %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok || _cfgFile != "" {
		logging.Logger(nil).WithError(err).Fatal("reading config file")
	}
}

func errPanic(err error) {
	if err != nil {
		panic(err)
	}
}

func checkRequiredFlags(needFlags ...string) error {
	missingFlags := []string{}

	for _, f := range needFlags {
		if !viper.IsSet(f) {
			missingFlags = append(missingFlags, f)
		}
	}

	if len(missingFlags) > 0 {
		itemPlural := "item"
		if len(missingFlags) > 1 {
			itemPlural = "items"
		}
		return fmt.Errorf("required config %s `%s` not set", itemPlural, strings.Join(missingFlags, "`, `"))
	}

	return nil
}

// expandPath resolves a leading ~ in file names taken from config
func expandPath(p string) string {
	if p == "" {
		return p
	}

	expanded, err := homedir.Expand(p)
	if err != nil {
		return p
	}

	return filepath.Clean(expanded)
}
