package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is the release version stamped into the banner.
const Version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "latchkey",
	Short: "Latchkey is an account recovery service",
	Long: `An account management service with knowledge-based password recovery:
users register security questions and recover lost passwords by answering
all of them. Complete documentation is available at
https://github.com/jcarver/latchkey`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
