package commands

import (
	"github.com/spf13/cobra"

	"github.com/medrex/portal-authz/internal/policy"
)

func newExportCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the shipped policy as YAML",
		Long: `Print the built-in policy document as YAML. The output is a valid --policy
file and a starting point for site-specific policies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := policy.Encode(policy.DefaultDocument())
			if err != nil {
				return err
			}
			g.log.WithField("bytes", len(data)).Debug("Exported shipped policy")
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
