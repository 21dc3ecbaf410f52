package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/amor/amor-go/mapping"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the mapping strategies",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printStrategies(cmd.OutOrStdout())
	},
}

func printStrategies(w io.Writer) {
	for _, s := range mapping.Strategies() {
		fmt.Fprintf(w, "%-30s %s\n", s.Name(), s.Describe())
	}
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
