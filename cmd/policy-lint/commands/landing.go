package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/medrex/portal-authz/pkg/rbac"
)

func newLandingCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "landing [role...]",
		Short: "Show landing pages",
		Long: `Without arguments, print the landing page of every role and whether the role
can reach it. With arguments, resolve the landing page for that role combination.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := g.engine()
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				res := engine.ResolveLanding(rbac.Roles(args...))
				fmt.Fprintf(out, "page: %s\n", res.Page)
				fmt.Fprintf(out, "rule: %d\n", res.Rule)
				if res.MatchedRole != "" {
					fmt.Fprintf(out, "matched role: %s\n", res.MatchedRole)
				}
				if res.Fallback {
					fmt.Fprintln(out, "fallback: true")
				}
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ROLE\tPAGE\tRULE\tREACHABLE")
			for _, role := range g.store.Roles() {
				res := engine.ResolveLanding([]rbac.Role{role})
				reachable := engine.HasRoutePermission([]rbac.Role{role}, res.Page.String())
				page := res.Page.String()
				if res.Fallback {
					page += " (fallback)"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", role, page, res.Rule, strconv.FormatBool(reachable))
			}
			return w.Flush()
		},
	}
}
