// Package cmd provides the command-line interface for cacheleak.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cacheleak/config"
)

var (
	profileName string
	envFile     string
	logLevel    string

	profile config.Profile
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cacheleak",
	Short: "cacheleak recovers secrets through a cache timing side channel.",
	Long: `cacheleak runs a transient-execution attack against a simulated ` +
		`target and recovers a secret byte by byte from cache timing. ` +
		`It can also describe cache geometries and calibrate the hit ` +
		`threshold of a target.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}

		p, err := config.Resolve(profileName, os.LookupEnv)
		if err != nil {
			return err
		}

		profile = p

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "rsd",
		"Built-in profile name or path to a YAML profile.")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"File of CACHELEAK_* overrides. Ignored if missing.")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "notice",
		"One of critical, error, warning, notice, info, debug.")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
