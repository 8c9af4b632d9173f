package gateway

import (
	"fmt"

	"github.com/medrex/portal-authz/internal/verifier"
	"github.com/medrex/portal-authz/pkg/monitoring"
	"github.com/medrex/portal-authz/pkg/rbac"
)

var issueKinds = []verifier.IssueKind{
	verifier.IssueMissingPermissions,
	verifier.IssueUnreachableLanding,
	verifier.IssueDuplicateRoute,
	verifier.IssueMalformedPattern,
	verifier.IssueNavigationUnreachable,
}

// policyStatus is the verifier's view of the loaded policy, computed once
type policyStatus struct {
	version   string
	report    string
	summary   verifier.Summary
	issues    []verifier.Issue
	navIssues []verifier.Issue
	matrix    verifier.Matrix
	passed    bool
}

func verifyPolicy(v *verifier.Verifier) policyStatus {
	st := policyStatus{
		version:   v.PolicyVersion(),
		report:    v.GenerateReport(),
		summary:   verifier.Summarize(v.ProbeAllRoles()),
		issues:    v.CheckStructuralConsistency(),
		navIssues: v.CheckNavigation(v.Navigation()),
		matrix:    v.Matrix(),
	}
	st.passed = st.summary.Failed == 0 && len(st.issues) == 0 && len(st.navIssues) == 0
	return st
}

func (st policyStatus) publish(m *monitoring.MetricsCollector) {
	counts := verifier.CountByKind(append(append([]verifier.Issue(nil), st.issues...), st.navIssues...))

	kinds := make([]string, len(issueKinds))
	byName := make(map[string]int, len(counts))
	for i, kind := range issueKinds {
		kinds[i] = string(kind)
		byName[string(kind)] = counts[kind]
	}
	m.SetPolicyIssues(kinds, byName)
	m.SetProbeSuccessRatio(st.summary.SuccessRate() / 100)
}

// health folds the verification into the health report's policy section
func (st policyStatus) health() monitoring.PolicyHealth {
	issues := make(map[string]int)
	for kind, n := range verifier.CountByKind(append(append([]verifier.Issue(nil), st.issues...), st.navIssues...)) {
		issues[string(kind)] = n
	}
	return monitoring.PolicyHealth{
		Version:      st.version,
		Passed:       st.passed,
		Probes:       st.summary.Probes,
		FailedProbes: st.summary.Failed,
		SuccessRate:  st.summary.SuccessRate(),
		Issues:       issues,
	}
}

// err describes a failed verification; it is nil when the policy passed
func (st policyStatus) err() *rbac.RBACError {
	if st.passed {
		return nil
	}

	var findings []string
	if st.summary.Failed > 0 {
		findings = append(findings, fmt.Sprintf("%d of %d probes failed for roles %v",
			st.summary.Failed, st.summary.Probes, st.summary.RolesWithFailure))
	}
	for _, issue := range st.issues {
		findings = append(findings, issue.String())
	}
	for _, issue := range st.navIssues {
		findings = append(findings, issue.String())
	}
	return rbac.ErrInvalidConfiguration.WithSuggestions(findings...)
}

// PolicyError explains why the loaded policy failed verification, or returns
// nil when it passed.
func (s *Service) PolicyError() error {
	if err := s.status.err(); err != nil {
		return err
	}
	return nil
}
