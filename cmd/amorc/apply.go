package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amor/amor-go/adapters"
	"github.com/amor/amor-go/adapters/file"
	"github.com/amor/amor-go/loader"
	"github.com/amor/amor-go/session"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Populate the tables from a mapping plan",
	Long: `Load a mapping plan, fetch every source document it names, apply the
content directives and then the mapping directives, and print the resulting
tables as a JSON snapshot.

Examples:
  # Apply a plan and print the snapshot
  amorc apply --plan plan.yaml

  # Start from default content and stop at the first bad record
  amorc apply --plan plan.yaml --content defaults.json --fail-fast

  # Re-apply whenever a file source changes
  amorc apply --plan plan.yaml --output tables.json --watch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := applyOptions{
			PlanPath:    cfg.GetString("plan"),
			ContentPath: cfg.GetString("content"),
			OutputPath:  cfg.GetString("output"),
			Watch:       cfg.GetBool("watch"),
		}
		if cfg.IsSet("fail_fast") {
			v := cfg.GetBool("fail_fast")
			opts.FailFast = &v
		}
		if cfg.IsSet("overwrite") {
			v := cfg.GetBool("overwrite")
			opts.Overwrite = &v
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runApply(ctx, opts, cmd.OutOrStdout(), logger)
	},
}

type applyOptions struct {
	PlanPath    string
	ContentPath string
	OutputPath  string
	FailFast    *bool
	Overwrite   *bool
	Watch       bool
}

func runApply(ctx context.Context, opts applyOptions, stdout io.Writer, logger *zap.Logger) error {
	if opts.PlanPath == "" {
		return errors.WithHint(errors.New("no plan given"), "pass --plan or set AMOR_PLAN")
	}
	plan, err := loader.LoadFromFile(opts.PlanPath)
	if err != nil {
		return err
	}
	if opts.FailFast != nil {
		plan.Session.FailFast = *opts.FailFast
	}
	if opts.Overwrite != nil {
		plan.Session.OverwriteKeyValues = opts.Overwrite
	}
	if opts.ContentPath != "" {
		abs, err := filepath.Abs(opts.ContentPath)
		if err != nil {
			return err
		}
		plan.Session.DefaultContent = abs
	}

	sources, err := plan.BuildSources()
	if err != nil {
		return err
	}
	transformer, err := adapters.NewDirectiveTransformer(sources, plan.Directives, adapters.WithTransformerLogger(logger))
	if err != nil {
		return err
	}
	defer transformer.Close()

	run := func() error {
		return populate(ctx, plan, transformer, opts.OutputPath, stdout, logger)
	}
	if !opts.Watch {
		return run()
	}
	return watch(ctx, plan, sources, run, logger)
}

func populate(ctx context.Context, plan *loader.Plan, t adapters.Transformer, output string, stdout io.Writer, logger *zap.Logger) error {
	sessionOpts, err := plan.SessionOptions(logger)
	if err != nil {
		return err
	}
	sess, err := session.New(sessionOpts...)
	if err != nil {
		return err
	}
	auth, creds, err := plan.Authenticator()
	if err != nil {
		return err
	}

	report, err := sess.Populate(ctx, t, auth, creds)
	for _, res := range report.Results {
		logger.Info("directive applied",
			zap.String("directive", res.Directive),
			zap.Int("strategy", int(res.Strategy)),
			zap.Int("records", res.Records),
			zap.Int("applied", res.Applied),
			zap.Int("skipped", res.Skipped))
	}
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(sess.Snapshot(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	data = append(data, '\n')
	if output == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", output)
	}
	logger.Info("snapshot written", zap.String("output", output), zap.Int("skipped", report.Skipped()))
	return nil
}

// watch re-runs populate whenever a document read through a file source
// changes, until ctx is cancelled
func watch(ctx context.Context, plan *loader.Plan, sources map[string]adapters.SourceProvider, run func() error, logger *zap.Logger) error {
	locations := make(map[string][]string)
	for _, d := range plan.Directives {
		if _, ok := sources[d.Source].(*file.Source); ok {
			locations[d.Source] = append(locations[d.Source], d.Location)
		}
	}
	if len(locations) == 0 {
		return errors.WithHint(errors.New("--watch needs at least one file source"), "declare a source with type: file")
	}

	if err := run(); err != nil {
		logger.Error("apply failed", zap.Error(err))
	}

	changes := make(chan file.Event)
	for id, locs := range locations {
		events, err := sources[id].(*file.Source).Watch(ctx, locs...)
		if err != nil {
			return fmt.Errorf("watching source %s: %w", id, err)
		}
		go func(events <-chan file.Event) {
			for ev := range events {
				select {
				case changes <- ev:
				case <-ctx.Done():
					return
				}
			}
		}(events)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-changes:
			if ev.Err != nil {
				logger.Warn("watch error", zap.Error(ev.Err))
				continue
			}
			logger.Info("document changed", zap.String("location", ev.Location), zap.String("operation", ev.Operation))
			if err := run(); err != nil {
				logger.Error("apply failed", zap.Error(err))
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().StringP("plan", "p", "", "Mapping plan file (YAML or JSON)")
	applyCmd.Flags().String("content", "", "Snapshot to start from, overriding the plan's default_content")
	applyCmd.Flags().StringP("output", "o", "", "Write the snapshot here instead of stdout")
	applyCmd.Flags().Bool("fail-fast", false, "Abort a directive on its first bad record")
	applyCmd.Flags().Bool("overwrite", true, "Replace differing existing values")
	applyCmd.Flags().Bool("watch", false, "Re-apply when file source documents change")

	bindFlag(applyCmd, "plan", "plan")
	bindFlag(applyCmd, "content", "content")
	bindFlag(applyCmd, "output", "output")
	bindFlag(applyCmd, "fail_fast", "fail-fast")
	bindFlag(applyCmd, "overwrite", "overwrite")
	bindFlag(applyCmd, "watch", "watch")
}
