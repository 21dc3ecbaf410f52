package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/amor/amor-go/adapters"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources [type...]",
	Short: "List the registered source types and their configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSources(cmd.OutOrStdout(), args)
	},
}

func printSources(w io.Writer, types []string) error {
	if len(types) == 0 {
		types = adapters.GetAvailableSourceTypes()
	}
	for _, t := range types {
		info := adapters.GetSourceTypeInfo(t)
		if info.Type == "" {
			return fmt.Errorf("unknown source type: %s", t)
		}

		required := make(map[string]bool, len(info.ConfigSchema.Required))
		for _, name := range info.ConfigSchema.Required {
			required[name] = true
		}
		names := make([]string, 0, len(info.ConfigSchema.Properties))
		for name := range info.ConfigSchema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w, info.Type)
		for _, name := range names {
			prop := info.ConfigSchema.Properties[name]
			kind := prop.Type
			if required[name] {
				kind += ", required"
			}
			fmt.Fprintf(w, "  %-18s %-16s %s\n", name, "("+kind+")", prop.Description)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
