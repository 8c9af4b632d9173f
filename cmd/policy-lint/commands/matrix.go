package commands

import (
	"github.com/spf13/cobra"
)

func newMatrixCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "matrix",
		Short: "Print the role by route access matrix",
		Long: `Print one row per probed route and one column per role. Y marks an allowed
route, - a denied one, and a trailing ! a disagreement with the policy table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.verifier().Matrix().Render(cmd.OutOrStdout())
		},
	}
}
