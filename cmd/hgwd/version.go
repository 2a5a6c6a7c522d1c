package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of hgwd",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("hgwd version 0.3.1")
	},
}
