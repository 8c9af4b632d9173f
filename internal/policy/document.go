package policy

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/medrex/portal-authz/pkg/rbac"
)

// Document is the serialisable form of a route policy. A Store is built from it
// exactly once; the document itself is never consulted again.
type Document struct {
	Version                string                 `yaml:"version" validate:"required"`
	UniversalRole          rbac.Role              `yaml:"universal_role" validate:"required"`
	UnauthenticatedLanding string                 `yaml:"unauthenticated_landing" validate:"required,startswith=/"`
	FallbackLanding        string                 `yaml:"fallback_landing" validate:"required,startswith=/"`
	Roles                  []rbac.Role            `yaml:"roles" validate:"required,min=1,dive,required"`
	PublicRoutes           []string               `yaml:"public_routes"`
	Permissions            map[rbac.Role][]string `yaml:"permissions"`
	Landing                []LandingEntry         `yaml:"landing" validate:"dive"`
	Navigation             []rbac.NavigationItem  `yaml:"navigation" validate:"dive"`
}

// LandingEntry is one row of the ordered landing rule table: a principal holding
// any of Roles lands on Page unless an earlier entry matched.
type LandingEntry struct {
	Roles []rbac.Role `yaml:"roles" validate:"required,min=1,dive,required"`
	Page  string      `yaml:"page" validate:"required,startswith=/"`
}

var documentValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the document shape. Route defects such as malformed patterns or
// unreachable landing pages are not shape errors; the verifier reports those.
func (d *Document) Validate() error {
	err := documentValidator.Struct(d)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return rbac.NewConfigurationError("policy", "document", d.Version, "document validation failed").WithCause(err)
	}

	var verrs rbac.ValidationErrors
	for _, fe := range fieldErrs {
		verrs.Add(fe.Namespace(), fmt.Sprintf("%v", fe.Value()), "failed '"+fe.Tag()+"' rule")
	}
	return rbac.NewConfigurationError("policy", "document", d.Version, "invalid policy document").WithCause(verrs)
}

// Parse decodes a YAML policy document and builds a Store from it.
func Parse(data []byte) (*Store, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, rbac.NewConfigurationError("policy", "document", "", "failed to decode policy YAML").WithCause(err)
	}
	return NewStore(doc)
}

// LoadFile reads a YAML policy document from path.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	store, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy file %s: %w", path, err)
	}
	return store, nil
}

// Load builds the Store from the YAML document at path, or from the shipped
// policy when path is empty.
func Load(path string) (*Store, error) {
	if path == "" {
		return NewStore(DefaultDocument())
	}
	return LoadFile(path)
}

// Encode renders the document as YAML. Parsing the output yields an
// equivalent document.
func Encode(d Document) ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy document: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy of the document so callers can derive variants
// without touching the original.
func (d Document) Clone() Document {
	out := d
	out.Roles = append([]rbac.Role(nil), d.Roles...)
	out.PublicRoutes = append([]string(nil), d.PublicRoutes...)

	if d.Permissions != nil {
		out.Permissions = make(map[rbac.Role][]string, len(d.Permissions))
		for role, routes := range d.Permissions {
			out.Permissions[role] = append([]string(nil), routes...)
		}
	}

	out.Landing = make([]LandingEntry, len(d.Landing))
	for i, entry := range d.Landing {
		out.Landing[i] = LandingEntry{
			Roles: append([]rbac.Role(nil), entry.Roles...),
			Page:  entry.Page,
		}
	}

	out.Navigation = cloneNavigation(d.Navigation)
	return out
}

func cloneNavigation(items []rbac.NavigationItem) []rbac.NavigationItem {
	if items == nil {
		return nil
	}
	out := make([]rbac.NavigationItem, len(items))
	for i, item := range items {
		out[i] = item
		out[i].AllowedRoles = append([]rbac.Role(nil), item.AllowedRoles...)
	}
	return out
}
