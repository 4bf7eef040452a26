package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"refinery/internal/filter/catalog"
)

// Version is stamped at build time with -ldflags "-X ...commands.Version=v1.2.3".
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "refinery %s\n", Version)
			fmt.Fprintf(out, "  go:      %s\n", runtime.Version())
			fmt.Fprintf(out, "  filters: %v\n", catalog.Default().Types())
		},
	}
}
