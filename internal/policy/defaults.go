package policy

import (
	"fmt"

	"github.com/medrex/portal-authz/pkg/rbac"
)

// DefaultVersion identifies the shipped policy table
const DefaultVersion = "2024.06"

// sharedRoutes are reachable by every authenticated role. They repeat the public
// routes so that signing in never narrows what a principal can open.
var sharedRoutes = []string{
	rbac.RouteRoot,
	rbac.RouteAuth,
	rbac.RouteResetPassword,
	"/profile",
	"/settings",
	"/notifications",
	"/chat",
	"/emergency",
}

var clinicalRoutes = []string{
	rbac.RouteProviderDash,
	"/patients",
	"/patients/:id",
	"/appointments",
	"/appointments/:id",
	"/prescriptions",
	"/lab-requests",
	"/clinical-notes",
	"/telemedicine",
	"/iot-monitoring",
}

var pharmacyRoutes = []string{
	rbac.RoutePharmacyPortal,
	"/inventory",
	"/prescriptions",
	"/dispensing",
	"/pharmacy-orders",
}

var labRoutes = []string{
	rbac.RouteLabPortal,
	"/lab-requests",
	"/lab-requests/:id",
	"/lab-results",
	"/sample-tracking",
}

var adminRoutes = []string{
	rbac.RouteAdminDashboard,
	"/user-management",
	"/institutions",
	"/institutions/:id",
	"/compliance",
	"/audit-logs",
	"/system-settings",
	"/reports",
	"/support-tickets",
	"/iot-monitoring",
}

var clinicalRoles = []rbac.Role{rbac.RoleDoctor, rbac.RoleNurse, rbac.RoleHealthPersonnel, rbac.RoleRadiologist}

func withShared(groups ...[]string) []string {
	out := append([]string(nil), sharedRoutes...)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// DefaultDocument returns a fresh copy of the shipped policy document.
func DefaultDocument() Document {
	everyone := append([]rbac.Role(nil), rbac.AllRoles...)
	clinical := func(extra ...rbac.Role) []rbac.Role {
		return append(append([]rbac.Role(nil), clinicalRoles...), extra...)
	}

	return Document{
		Version:                DefaultVersion,
		UniversalRole:          rbac.RoleSuperAdmin,
		UnauthenticatedLanding: rbac.RouteAuth,
		FallbackLanding:        rbac.RoutePatientDashboard,
		Roles:                  append([]rbac.Role(nil), rbac.AllRoles...),
		PublicRoutes: []string{
			rbac.RouteRoot,
			rbac.RouteAuth,
			rbac.RouteResetPassword,
		},
		Permissions: map[rbac.Role][]string{
			rbac.RolePatient: withShared([]string{
				rbac.RoutePatientDashboard,
				"/symptoms",
				"/appointments",
				"/appointments/:id",
				"/medical-records",
				"/prescriptions",
				"/lab-results",
				"/pharmacy-finder",
				"/iot-devices",
				"/billing",
				"/telemedicine",
			}),
			rbac.RoleDoctor:          withShared(clinicalRoutes, []string{"/prescribe"}),
			rbac.RoleNurse:           withShared(clinicalRoutes, []string{"/vitals", "/medication-administration"}),
			rbac.RoleHealthPersonnel: withShared(clinicalRoutes),
			rbac.RoleRadiologist:     withShared(clinicalRoutes, []string{"/imaging", "/imaging/:studyId"}),
			rbac.RolePharmacy:        withShared(pharmacyRoutes),
			rbac.RolePharmacist:      withShared(pharmacyRoutes),
			rbac.RoleLab:             withShared(labRoutes),
			rbac.RoleLabTechnician:   withShared(labRoutes),
			rbac.RoleInstitutionAdmin: withShared([]string{
				rbac.RouteInstitution,
				"/staff-management",
				"/departments",
				"/institution-billing",
				"/compliance",
				"/audit-logs",
				"/iot-monitoring",
				"/reports",
			}),
			rbac.RoleInstitutionStaff: withShared([]string{
				rbac.RouteInstitution,
				"/departments",
				"/reports",
				"/appointments",
				"/patients",
			}),
			rbac.RoleAdmin:      withShared(adminRoutes),
			rbac.RoleSuperAdmin: withShared(adminRoutes, []string{"/super-admin"}),
			rbac.RoleSupport: withShared([]string{
				rbac.RouteSupportCenter,
				"/support-tickets",
				"/support-tickets/:id",
				"/faq",
			}),
		},
		Landing: []LandingEntry{
			{Roles: []rbac.Role{rbac.RoleAdmin, rbac.RoleSuperAdmin}, Page: rbac.RouteAdminDashboard},
			{Roles: []rbac.Role{rbac.RoleInstitutionAdmin, rbac.RoleInstitutionStaff}, Page: rbac.RouteInstitution},
			{Roles: []rbac.Role{rbac.RoleHealthPersonnel, rbac.RoleDoctor, rbac.RoleNurse, rbac.RoleRadiologist}, Page: rbac.RouteProviderDash},
			{Roles: []rbac.Role{rbac.RolePharmacy, rbac.RolePharmacist}, Page: rbac.RoutePharmacyPortal},
			{Roles: []rbac.Role{rbac.RoleLab, rbac.RoleLabTechnician}, Page: rbac.RouteLabPortal},
			{Roles: []rbac.Role{rbac.RolePatient}, Page: rbac.RoutePatientDashboard},
			{Roles: []rbac.Role{rbac.RoleSupport}, Page: rbac.RouteSupportCenter},
		},
		Navigation: []rbac.NavigationItem{
			{Path: rbac.RoutePatientDashboard, Label: "Dashboard", Icon: "home", AllowedRoles: []rbac.Role{rbac.RolePatient}},
			{Path: rbac.RouteProviderDash, Label: "Provider Dashboard", Icon: "stethoscope", AllowedRoles: clinical()},
			{Path: rbac.RoutePharmacyPortal, Label: "Pharmacy", Icon: "pill", AllowedRoles: []rbac.Role{rbac.RolePharmacy, rbac.RolePharmacist}},
			{Path: rbac.RouteLabPortal, Label: "Laboratory", Icon: "flask", AllowedRoles: []rbac.Role{rbac.RoleLab, rbac.RoleLabTechnician}},
			{Path: rbac.RouteInstitution, Label: "Institution", Icon: "building", AllowedRoles: []rbac.Role{rbac.RoleInstitutionAdmin, rbac.RoleInstitutionStaff}},
			{Path: rbac.RouteAdminDashboard, Label: "Administration", Icon: "shield", AllowedRoles: []rbac.Role{rbac.RoleAdmin}},
			{Path: "/symptoms", Label: "Symptom Checker", Icon: "activity", AllowedRoles: []rbac.Role{rbac.RolePatient}},
			{Path: "/appointments", Label: "Appointments", Icon: "calendar", AllowedRoles: clinical(rbac.RolePatient, rbac.RoleInstitutionStaff)},
			{Path: "/patients", Label: "Patients", Icon: "users", AllowedRoles: clinical(rbac.RoleInstitutionStaff)},
			{Path: "/prescriptions", Label: "Prescriptions", Icon: "file-text", AllowedRoles: clinical(rbac.RolePatient, rbac.RolePharmacy, rbac.RolePharmacist)},
			{Path: "/lab-requests", Label: "Lab Requests", Icon: "clipboard", AllowedRoles: clinical(rbac.RoleLab, rbac.RoleLabTechnician)},
			{Path: "/imaging", Label: "Imaging", Icon: "scan", AllowedRoles: []rbac.Role{rbac.RoleRadiologist}},
			{Path: "/inventory", Label: "Inventory", Icon: "package", AllowedRoles: []rbac.Role{rbac.RolePharmacy, rbac.RolePharmacist}},
			{Path: "/iot-monitoring", Label: "IoT Monitoring", Icon: "cpu", AllowedRoles: clinical(rbac.RoleInstitutionAdmin, rbac.RoleAdmin)},
			{Path: "/compliance", Label: "Compliance", Icon: "check-square", AllowedRoles: []rbac.Role{rbac.RoleInstitutionAdmin, rbac.RoleAdmin}},
			{Path: "/audit-logs", Label: "Audit Logs", Icon: "list", AllowedRoles: []rbac.Role{rbac.RoleInstitutionAdmin, rbac.RoleAdmin}},
			{Path: rbac.RouteSupportCenter, Label: "Support", Icon: "life-buoy", AllowedRoles: []rbac.Role{rbac.RoleSupport}},
			{Path: "/chat", Label: "Assistant", Icon: "message-circle", AllowedRoles: everyone},
			{Path: "/emergency", Label: "Emergency", Icon: "alert-triangle", AllowedRoles: everyone},
			{Path: "/settings", Label: "Settings", Icon: "settings", AllowedRoles: everyone},
		},
	}
}

// Default builds the Store for the shipped policy. The shipped document is a
// compile-time constant, so a failure here is a programming error.
func Default() *Store {
	store, err := NewStore(DefaultDocument())
	if err != nil {
		panic(fmt.Sprintf("policy: shipped policy document is invalid: %v", err))
	}
	return store
}
