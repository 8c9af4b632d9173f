package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/medrex/portal-authz/pkg/rbac"
)

// DefaultRolesHeader is set by the upstream authentication proxy
const DefaultRolesHeader = "X-Principal-Roles"

// PrincipalResolver supplies the roles held by the caller of a request. An
// empty role set means the caller is not signed in.
type PrincipalResolver interface {
	Roles(r *http.Request) ([]rbac.Role, error)
}

// HeaderPrincipalResolver reads a comma-separated role list from a header
type HeaderPrincipalResolver struct {
	Header string
}

// NewHeaderPrincipalResolver creates a resolver for header, or for
// DefaultRolesHeader when header is empty.
func NewHeaderPrincipalResolver(header string) *HeaderPrincipalResolver {
	if header == "" {
		header = DefaultRolesHeader
	}
	return &HeaderPrincipalResolver{Header: header}
}

// Roles parses the header. Blank entries are skipped and repeated roles are
// kept once. Unknown role names are passed through; they grant nothing.
func (h *HeaderPrincipalResolver) Roles(r *http.Request) ([]rbac.Role, error) {
	var roles []rbac.Role
	seen := make(map[rbac.Role]struct{})

	for _, value := range r.Header.Values(h.Header) {
		for _, part := range strings.Split(value, ",") {
			name := strings.TrimSpace(part)
			if name == "" {
				continue
			}
			if !validRoleName(name) {
				return nil, rbac.ErrInvalidRequest.WithSuggestions(
					fmt.Sprintf("role names in %s may only contain lowercase letters, digits and underscores", h.Header),
				)
			}

			role := rbac.Role(name)
			if _, dup := seen[role]; dup {
				continue
			}
			seen[role] = struct{}{}
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func validRoleName(name string) bool {
	for _, c := range name {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}
