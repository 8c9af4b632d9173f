package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medrex/portal-authz/internal/verifier"
)

type jsonReport struct {
	Version          string                 `json:"version"`
	Passed           bool                   `json:"passed"`
	Summary          verifier.Summary       `json:"summary"`
	Suites           []verifier.SuiteResult `json:"suites"`
	Issues           []verifier.Issue       `json:"issues"`
	NavigationIssues []verifier.Issue       `json:"navigation_issues"`
}

func newReportCmd(g *globals) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the verification report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := g.verifier()

			switch output {
			case "text":
				fmt.Fprint(cmd.OutOrStdout(), v.GenerateReport())
				return nil
			case "json":
				suites := v.ProbeAllRoles()
				report := jsonReport{
					Version:          v.PolicyVersion(),
					Passed:           v.Passed(),
					Summary:          verifier.Summarize(suites),
					Suites:           suites,
					Issues:           nonNil(v.CheckStructuralConsistency()),
					NavigationIssues: nonNil(v.CheckNavigation(v.Navigation())),
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			default:
				return fmt.Errorf("unsupported output format %q (want text or json)", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json)")
	return cmd
}

func nonNil(issues []verifier.Issue) []verifier.Issue {
	if issues == nil {
		return []verifier.Issue{}
	}
	return issues
}
