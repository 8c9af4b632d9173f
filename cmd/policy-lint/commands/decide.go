package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medrex/portal-authz/pkg/rbac"
)

func newDecideCmd(g *globals) *cobra.Command {
	var roles []string

	cmd := &cobra.Command{
		Use:   "decide <route>...",
		Short: "Evaluate routes for a role set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := g.engine()
			held := rbac.Roles(roles...)

			for _, route := range args {
				d := engine.Decide(held, route)
				line := fmt.Sprintf("%s\t%s\t%s", route, verdict(d.Allowed), d.Reason)
				if d.Role != "" {
					line += "\trole=" + string(d.Role)
				}
				if d.Pattern != "" {
					line += "\tpattern=" + d.Pattern
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&roles, "roles", "r", nil, "roles held by the principal (comma separated)")
	return cmd
}

func verdict(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}
