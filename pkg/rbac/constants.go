package rbac

// Role identifies a capability bundle held by a principal. A principal may hold
// several roles at once.
type Role string

// Portal role definitions
const (
	RolePatient          Role = "patient"
	RoleDoctor           Role = "doctor"
	RoleNurse            Role = "nurse"
	RoleHealthPersonnel  Role = "health_personnel"
	RoleRadiologist      Role = "radiologist"
	RolePharmacy         Role = "pharmacy"
	RolePharmacist       Role = "pharmacist"
	RoleLab              Role = "lab"
	RoleLabTechnician    Role = "lab_technician"
	RoleInstitutionAdmin Role = "institution_admin"
	RoleInstitutionStaff Role = "institution_staff"
	RoleAdmin            Role = "admin"
	RoleSuperAdmin       Role = "super_admin"
	RoleSupport          Role = "support"
)

// AllRoles is the closed role enumeration in canonical order. Reports and probe
// suites iterate in this order.
var AllRoles = []Role{
	RolePatient,
	RoleDoctor,
	RoleNurse,
	RoleHealthPersonnel,
	RoleRadiologist,
	RolePharmacy,
	RolePharmacist,
	RoleLab,
	RoleLabTechnician,
	RoleInstitutionAdmin,
	RoleInstitutionStaff,
	RoleAdmin,
	RoleSuperAdmin,
	RoleSupport,
}

var knownRoles = func() map[Role]struct{} {
	m := make(map[Role]struct{}, len(AllRoles))
	for _, r := range AllRoles {
		m[r] = struct{}{}
	}
	return m
}()

// IsKnown reports whether r belongs to the role enumeration.
func (r Role) IsKnown() bool {
	_, ok := knownRoles[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// Roles converts raw role strings into Roles, dropping empty entries.
func Roles(names ...string) []Role {
	out := make([]Role, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		out = append(out, Role(n))
	}
	return out
}

// Decision reasons
const (
	ReasonPublic           = "public"
	ReasonAnonymousDenied  = "anonymous_denied"
	ReasonUniversal        = "universal"
	ReasonRoleGrant        = "role_grant"
	ReasonInsufficientRole = "insufficient_role"
)

// Well-known routes of the portal shell
const (
	RouteRoot             = "/"
	RouteAuth             = "/auth"
	RouteResetPassword    = "/reset-password"
	RouteAdminDashboard   = "/admin-dashboard"
	RouteInstitution      = "/institution-portal"
	RouteProviderDash     = "/provider-dashboard"
	RoutePharmacyPortal   = "/pharmacy-portal"
	RouteLabPortal        = "/lab-portal"
	RoutePatientDashboard = "/patient-dashboard"
	RouteSupportCenter    = "/support-center"
)

// Error codes for authorization operations
const (
	ErrorCodeInsufficientPrivileges = "AUTHZ_001"
	ErrorCodeUnauthenticated        = "AUTHZ_002"
	ErrorCodeInvalidRequest         = "AUTHZ_003"
	ErrorCodeInvalidConfiguration   = "AUTHZ_004"
	ErrorCodeSystemError            = "AUTHZ_005"
	ErrorCodeRateLimited            = "AUTHZ_006"
)
