package verifier

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/medrex/portal-authz/pkg/rbac"
)

// Summary aggregates probe outcomes across roles
type Summary struct {
	Roles            int         `json:"roles"`
	Probes           int         `json:"probes"`
	Passed           int         `json:"passed"`
	Failed           int         `json:"failed"`
	RolesWithFailure []rbac.Role `json:"roles_with_failure,omitempty"`
}

// SuccessRate returns the share of passing probes as a percentage
func (s Summary) SuccessRate() float64 {
	if s.Probes == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Probes) * 100
}

// Summarize folds per-role suites into one summary
func Summarize(suites []SuiteResult) Summary {
	var sum Summary
	for _, suite := range suites {
		sum.Roles++
		sum.Probes += suite.Total()
		sum.Passed += suite.Passed
		sum.Failed += suite.Failed
		if suite.Failed > 0 {
			sum.RolesWithFailure = append(sum.RolesWithFailure, suite.Role)
		}
	}
	return sum
}

// GenerateReport renders the probe results and structural findings as text.
// The output depends only on the policy, so it can be diffed between builds.
func (v *Verifier) GenerateReport() string {
	suites := v.ProbeAllRoles()
	issues := v.CheckStructuralConsistency()
	navIssues := v.CheckNavigation(v.Navigation())

	var b strings.Builder
	fmt.Fprintln(&b, "Route Access Verification Report")
	fmt.Fprintf(&b, "Policy version: %s\n", v.store.Version())
	fmt.Fprintf(&b, "Probe routes: %d\n", len(v.probes))

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Per-role results")
	for _, suite := range suites {
		fmt.Fprintf(&b, "  %-18s %d/%d passed (%.1f%%)\n", suite.Role, suite.Passed, suite.Total(), suite.SuccessRate())
		for _, f := range suite.Failures {
			fmt.Fprintf(&b, "    FAIL %s expected=%s actual=%s\n", f.Route, verdict(f.Expected), verdict(f.Actual))
		}
	}

	sum := Summarize(suites)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Summary")
	fmt.Fprintf(&b, "  Roles tested: %d\n", sum.Roles)
	fmt.Fprintf(&b, "  Probes run: %d\n", sum.Probes)
	fmt.Fprintf(&b, "  Passed: %d\n", sum.Passed)
	fmt.Fprintf(&b, "  Failed: %d\n", sum.Failed)
	fmt.Fprintf(&b, "  Success rate: %.1f%%\n", sum.SuccessRate())
	if len(sum.RolesWithFailure) == 0 {
		fmt.Fprintln(&b, "  Roles with failures: none")
	} else {
		names := make([]string, len(sum.RolesWithFailure))
		for i, r := range sum.RolesWithFailure {
			names[i] = string(r)
		}
		fmt.Fprintf(&b, "  Roles with failures: %s\n", strings.Join(names, ", "))
	}

	writeIssues(&b, "Structural consistency", issues)
	writeIssues(&b, "Navigation consistency", navIssues)

	return b.String()
}

func writeIssues(b *strings.Builder, title string, issues []Issue) {
	fmt.Fprintln(b)
	fmt.Fprintln(b, title)
	if len(issues) == 0 {
		fmt.Fprintln(b, "  No issues found.")
		return
	}
	for _, issue := range issues {
		fmt.Fprintf(b, "  %s\n", issue)
	}
}

func verdict(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

// Matrix is the role by route pass/fail grid of a full probe run
type Matrix struct {
	Roles  []rbac.Role     `json:"roles"`
	Routes []string        `json:"routes"`
	Cells  [][]ProbeResult `json:"cells"`
}

// Matrix runs every probe and arranges the results by role and route
func (v *Verifier) Matrix() Matrix {
	suites := v.ProbeAllRoles()
	m := Matrix{
		Routes: v.ProbeCatalog(),
		Roles:  make([]rbac.Role, len(suites)),
		Cells:  make([][]ProbeResult, len(suites)),
	}
	for i, suite := range suites {
		m.Roles[i] = suite.Role
		m.Cells[i] = suite.Results
	}
	return m
}

// Render writes the matrix with one row per route and one column per role.
// Cells show Y for allowed and - for denied; a trailing ! marks a mismatch.
func (m Matrix) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	header := []string{"ROUTE"}
	for _, role := range m.Roles {
		header = append(header, string(role))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for j, route := range m.Routes {
		row := []string{route}
		for i := range m.Roles {
			cell := m.Cells[i][j]
			mark := "-"
			if cell.Actual {
				mark = "Y"
			}
			if !cell.Passed() {
				mark += "!"
			}
			row = append(row, mark)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
