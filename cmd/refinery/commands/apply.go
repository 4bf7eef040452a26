package commands

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"refinery/internal/filter"
	"refinery/internal/pipeline"
	"refinery/internal/record"
)

func newApplyCmd(cat filter.Catalog) *cobra.Command {
	var (
		pipelineFile string
		tag          string
	)
	cmd := &cobra.Command{
		Use:   "apply [file]",
		Short: "Apply a pipeline's filters to JSON records",
		Long: `Apply reads one JSON object per line from file (or stdin), passes each
through the pipeline's filters and prints the result as a JSON line.
Dropped records print nothing. The pipeline's source and sinks are ignored.

Example:
  echo '{"message":"disk almost full on db-1"}' | refinery apply -p pipeline.yml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			r, err := pipeline.CompileFilters(pipelineFile, cat)
			if err != nil {
				return err
			}
			defer r.Close()
			return applyLines(cmd, r, tag, in)
		},
	}
	cmd.Flags().StringVarP(&pipelineFile, "pipeline", "p", "pipeline.yml", "pipeline file")
	cmd.Flags().StringVarP(&tag, "tag", "t", "apply", "tag passed to the filters")
	return cmd
}

func applyLines(cmd *cobra.Command, r *pipeline.Runner, tag string, in io.Reader) error {
	out := cmd.OutOrStdout()
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64<<10), 64<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		rec, err := record.FormatJSON.Unmarshal(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		res, err := r.Apply(cmd.Context(), tag, rec)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if res == nil {
			continue
		}
		b, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		fmt.Fprintf(out, "%s\n", b)
	}
	return sc.Err()
}
