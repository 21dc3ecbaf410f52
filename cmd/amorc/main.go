package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	_ "github.com/amor/amor-go/adapters/file"
	_ "github.com/amor/amor-go/adapters/http"
	_ "github.com/amor/amor-go/adapters/redis"
	_ "github.com/amor/amor-go/adapters/s3"
	"github.com/amor/amor-go/internal/logging"
)

const envPrefix = "AMOR"

var (
	version = "dev"

	cfg    = viper.New()
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "amorc",
	Short: "Populate content and mapping tables from source documents",
	Long: `amorc applies mapping directives to source documents and prints the
resulting Content Table and Mapping Table.

Settings come from flags, from AMOR_* environment variables (AMOR_LOG_LEVEL,
AMOR_FAIL_FAST, ...) and from the optional --config file, in that order.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := readConfig(cfg.GetString("config")); err != nil {
			return err
		}
		l, err := logging.New(cfg.GetBool("log_json"), cfg.GetString("log_level"))
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func readConfig(path string) error {
	if path == "" {
		return nil
	}
	cfg.SetConfigFile(path)
	if err := cfg.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "reading config %s", path)
	}
	return nil
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := cfg.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func init() {
	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	cfg.AutomaticEnv()

	rootCmd.PersistentFlags().String("config", "", "Config file (YAML, JSON or TOML)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON logs")
	for key, flag := range map[string]string{"config": "config", "log_level": "log-level", "log_json": "log-json"} {
		if err := cfg.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
