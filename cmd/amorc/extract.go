package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/amor/amor-go/adapters"
	"github.com/amor/amor-go/pathutil"
)

var extractCmd = &cobra.Command{
	Use:   "extract <path> [file]",
	Short: "Evaluate a path expression against a document",
	Long: `Evaluate a path expression such as data[*].feed.url against a JSON,
NDJSON or Parquet document and print each match as one JSON value per line.

The document is read from stdin when no file (or "-") is given.

Examples:
  amorc extract 'data[*].feed.url' sample.json
  curl -s https://api.example.com/feed | amorc extract 'data[*].feed.id'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := "-"
		if len(args) == 2 {
			file = args[1]
		}
		format, _ := cmd.Flags().GetString("format")
		return runExtract(args[0], file, format, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runExtract(expr, file, format string, stdin io.Reader, out io.Writer) error {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	if format == "" {
		format = adapters.FormatFromName(file)
	}
	doc, err := adapters.DecodeDocument(data, format)
	if err != nil {
		return err
	}

	results, err := pathutil.Extract(expr, doc)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintln(out, r.Raw)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().String("format", "", "Document format (json, ndjson, parquet); guessed from the file name when empty")
}
