package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/medrex/portal-authz/internal/verifier"
)

func newCheckCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fail when the policy has probe failures or structural issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := g.verifier()
			out := cmd.OutOrStdout()

			sum := verifier.Summarize(v.ProbeAllRoles())
			issues := append(v.CheckStructuralConsistency(), v.CheckNavigation(v.Navigation())...)

			fmt.Fprintf(out, "policy %s: %d/%d probes passed (%.1f%%), %d issues\n",
				v.PolicyVersion(), sum.Passed, sum.Probes, sum.SuccessRate(), len(issues))
			for _, issue := range issues {
				fmt.Fprintf(out, "  %s\n", issue)
			}

			if sum.Failed == 0 && len(issues) == 0 {
				return nil
			}

			g.log.WithFields(logrus.Fields{
				"failed_probes": sum.Failed,
				"issues":        len(issues),
				"roles":         sum.RolesWithFailure,
			}).Warn("Policy failed verification")
			return fmt.Errorf("policy %s failed verification: %d failed probes, %d issues",
				v.PolicyVersion(), sum.Failed, len(issues))
		},
	}
}
