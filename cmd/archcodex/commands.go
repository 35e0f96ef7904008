package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/config"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/logger"
)

const (
	exitOK         = 0
	exitViolations = 1
	exitError      = 2
)

// exitCodeError lets a command pick the process exit code without printing
// an error message.
type exitCodeError struct{ code int }

func (e exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

var (
	rootDir  string
	logLevel string

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:           "archcodex",
		Short:         "Enforce architectural rules declared in a registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(rootDir)
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.Log.Level = logLevel
				if err := loaded.Validate(); err != nil {
					return err
				}
			}
			logger.Init(loaded.LoggerConfig())
			cfg = loaded
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "C", ".", "project root")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(checkCmd, resolveCmd, watchCmd)
}

func execute() int {
	if err := rootCmd.Execute(); err != nil {
		var ec exitCodeError
		if errors.As(err, &ec) {
			return ec.code
		}
		fmt.Fprintf(os.Stderr, "archcodex: %v\n", err)
		return exitError
	}
	return exitOK
}
