package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/wharf"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of wharf",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wharf version %s\n", strings.TrimSpace(wharf.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
