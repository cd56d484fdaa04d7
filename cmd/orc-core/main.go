// Command orc-core is the CLI front end: a thin cobra/pflag wrapper
// that wires the core's library packages (volume, mft, pathresolve,
// walker, archive, job, execset, outcome) to flags and stdout/files.
// All actual collection logic lives in those packages; this command
// only parses arguments, builds a logger, and calls them.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "orc-core",
	Short: "Collect forensic artifacts from an NTFS volume",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		lvl, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(lvl)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: panic, fatal, error, warn, info, debug, trace")
	rootCmd.AddCommand(versionCommand)
	rootCmd.AddCommand(walkCommand)
	rootCmd.AddCommand(collectCommand)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("orc-core: fatal")
		os.Exit(1)
	}
}
