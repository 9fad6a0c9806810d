package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/control4-bridge/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the version number of the bridge",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doVersion(); err != nil {
			return err
		}

		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "Return version as JSON")
	errPanic(viper.GetViper().BindPFlag("version.json", versionCmd.Flags().Lookup("json")))

	rootCmd.AddCommand(versionCmd)
}

type versionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go-version"`
}

func doVersion() error {
	v := versionResult{
		Version:   version.Version,
		Commit:    version.Commit,
		GoVersion: runtime.Version(),
	}

	if viper.GetBool("version.json") {
		b, err := json.MarshalIndent(v, "", "    ")
		if err != nil {
			return err
		}

		fmt.Println(string(b))
		return nil
	}

	fmt.Printf("control4-bridge version %s", v.Version)
	if v.Commit != "" {
		fmt.Printf(" (%s)", v.Commit)
	}
	fmt.Printf(" %s\n", v.GoVersion)

	return nil
}
