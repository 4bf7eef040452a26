package commands

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"refinery/internal/filter"
	"refinery/internal/filter/catalog"
	"refinery/internal/logging"
)

type globalFlags struct {
	envFile  string
	logLevel string
	logJSON  bool
}

// NewRootCmd builds the command tree. Filters are looked up in cat.
func NewRootCmd(cat filter.Catalog) *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:   "refinery",
		Short: "Record filters for log pipelines: LLM generation and audio transcoding",
		Long: `refinery - run structured-log pipelines through record filters.

Built-in filter types:
  llm_generate     send one record field to an LLM, store the reply in another
  audio_transcode  convert the record's audio content with ffmpeg

Environment:
  REFINERY_LOG_LEVEL, REFINERY_LOG_JSON   logging defaults
  REFINERY_FILTER__<NAME>__<KEY>          override a filter parameter
  REFINERY_KAFKA__<KEY>                   override the Kafka source config

Examples:
  # Consume, filter and print
  refinery run -p pipeline.yml

  # Try the filter chain on a few records
  echo '{"message":"disk almost full"}' | refinery apply -p pipeline.yml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadDotEnv(g.envFile); err != nil {
				return err
			}
			logging.InitFromEnv()
			f := cmd.Flags()
			if f.Changed("log-level") || f.Changed("log-json") {
				lvl := g.logLevel
				if !f.Changed("log-level") {
					lvl = os.Getenv("REFINERY_LOG_LEVEL")
				}
				logging.Configure(logging.Options{Level: lvl, JSON: g.logJSON})
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before anything else (missing is fine)")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.BoolVar(&g.logJSON, "log-json", false, "log as JSON")

	root.AddCommand(newRunCmd(cat), newApplyCmd(cat), newVersionCmd())
	return root
}

// Execute runs the CLI with the built-in filter catalog.
func Execute() error {
	return NewRootCmd(catalog.Default()).Execute()
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
