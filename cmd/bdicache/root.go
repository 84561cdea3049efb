package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
)

// envPrefix starts the name of every environment variable that can stand in
// for a flag, e.g. BDICACHE_LINE_SIZE for --line-size.
const envPrefix = "BDICACHE_"

var logger = logrus.New()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bdicache",
	Short: "bdicache models a cache that stores lines BDI-compressed.",
	Long: `bdicache models a cache bank whose sets hold lines at their ` +
		`Base-Delta-Immediate compressed size. It can estimate how well ` +
		`data compresses and replay access traces through a bank.` + "\n\n" +
		`Every flag can also be given as an environment variable or in a ` +
		`.env file, e.g. ` + envPrefix + `LINE_SIZE=128.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := loadEnv(envFile, cmd.Flags()); err != nil {
			return err
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false,
		"Log every change of the bank content.")
	rootCmd.PersistentFlags().String("env-file", ".env",
		"File to load environment variables from.")
}

// loadEnv loads the env file, if present, and fills every flag the user did
// not set from its environment variable.
func loadEnv(envFile string, flags *pflag.FlagSet) error {
	err := godotenv.Load(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cannot load %s: %w", envFile, err)
	}

	var firstErr error

	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || firstErr != nil {
			return
		}

		name := envName(f.Name)

		value, ok := os.LookupEnv(name)
		if !ok {
			return
		}

		if err := flags.Set(f.Name, value); err != nil {
			firstErr = fmt.Errorf("%s: %w", name, err)
		}
	})

	return firstErr
}

func envName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
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
