package cobra

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glasslab/cp2kit/internal/version"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print cp2kit version",
		Long:  "Print the cp2kit version string.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cp2kit %s\n", version.FullVersion())
		},
	}

	return cmd
}
