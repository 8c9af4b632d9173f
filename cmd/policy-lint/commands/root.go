package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/medrex/portal-authz/internal/authz"
	"github.com/medrex/portal-authz/internal/policy"
	"github.com/medrex/portal-authz/internal/verifier"
	"github.com/medrex/portal-authz/pkg/logger"
)

// globals holds the state shared by every subcommand once the persistent
// flags have been parsed and the policy loaded.
type globals struct {
	policyFile    string
	logLevel      string
	invalidProbes []string

	store *policy.Store
	log   *logrus.Entry
}

func (g *globals) engine() *authz.Engine {
	return authz.NewEngine(g.store)
}

func (g *globals) verifier() *verifier.Verifier {
	var opts []verifier.Option
	if len(g.invalidProbes) > 0 {
		opts = append(opts, verifier.WithInvalidProbes(g.invalidProbes...))
	}
	return verifier.NewForStore(g.store, opts...)
}

// NewRootCmd builds the policy-lint command tree
func NewRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "policy-lint",
		Short: "Verify the portal route authorization policy",
		Long: `policy-lint runs the route policy verifier against the shipped policy or a
YAML policy file. Use "check" as a release gate: it exits non-zero when any
probe fails or any structural issue is found.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			g.log = logger.NewWithOutput(g.logLevel, cmd.ErrOrStderr()).WithComponent("policy-lint")

			store, err := policy.Load(g.policyFile)
			if err != nil {
				return fmt.Errorf("failed to load policy: %w", err)
			}
			g.store = store

			source := g.policyFile
			if source == "" {
				source = "builtin"
			}
			g.log.WithFields(logrus.Fields{
				"policy_version": store.Version(),
				"source":         source,
			}).Debug("Policy loaded")
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.policyFile, "policy", "p", "", "policy YAML file (default: shipped policy)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringSliceVar(&g.invalidProbes, "invalid-probe", nil, "routes no role may reach (replaces the defaults)")

	rootCmd.AddCommand(
		newReportCmd(g),
		newCheckCmd(g),
		newMatrixCmd(g),
		newLandingCmd(g),
		newDecideCmd(g),
		newExportCmd(g),
	)

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
