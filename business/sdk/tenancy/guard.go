package tenancy

import (
	"fmt"

	"github.com/google/uuid"
)

// Named parameters the predicates bind into the caller's data map. Stores
// must not use these names for their own values.
const (
	ParamTenantID = "guard_tenant_id"
	ParamUserID   = "guard_user_id"
)

const (
	matchNothing = "FALSE"
	matchAll     = "TRUE"
)

// TenantPredicate returns the SQL predicate confining column to the caller's
// tenant and binds the tenant into data. A context without a tenant yields a
// predicate that matches nothing, so the statement fails closed with zero
// rows. The service tier matches everything.
func TenantPredicate(ac AccessContext, column string, data map[string]any) string {
	if ac.IsService() {
		return matchAll
	}

	tenantID, ok := ac.TenantID()
	if !ok {
		return matchNothing
	}

	data[ParamTenantID] = tenantID

	return fmt.Sprintf("%s = :%s", column, ParamTenantID)
}

// MemberPredicate confines rows of the tenant registry to the tenants the
// caller is a member of. tenantColumn names the tenant id column of the
// outer query.
func MemberPredicate(ac AccessContext, tenantColumn string, data map[string]any) string {
	if ac.IsService() {
		return matchAll
	}

	userID, ok := ac.UserID()
	if !ok {
		return matchNothing
	}

	data[ParamUserID] = userID

	return fmt.Sprintf(`EXISTS (
		SELECT 1 FROM tenant_membership AS gm
		WHERE gm.tenant_id = %s AND gm.user_id = :%s)`, tenantColumn, ParamUserID)
}

// SharedMemberPredicate confines rows of the user registry to the caller
// itself and to users sharing at least one tenant with the caller.
func SharedMemberPredicate(ac AccessContext, userColumn string, data map[string]any) string {
	if ac.IsService() {
		return matchAll
	}

	userID, ok := ac.UserID()
	if !ok {
		return matchNothing
	}

	data[ParamUserID] = userID

	return fmt.Sprintf(`(%[1]s = :%[2]s OR EXISTS (
		SELECT 1 FROM tenant_membership AS mine
		JOIN tenant_membership AS theirs ON theirs.tenant_id = mine.tenant_id
		WHERE mine.user_id = :%[2]s AND theirs.user_id = %[1]s))`, userColumn, ParamUserID)
}

// ManagedUserPredicate confines writes on the user registry. Credentials,
// role and the enabled flag are global to a user, so a caller may change
// itself and otherwise only users whose every membership is in the caller's
// tenant.
func ManagedUserPredicate(ac AccessContext, userColumn string, data map[string]any) string {
	if ac.IsService() {
		return matchAll
	}

	userID, ok := ac.UserID()
	if !ok {
		return matchNothing
	}

	data[ParamUserID] = userID

	tenantID, ok := ac.TenantID()
	if !ok {
		return fmt.Sprintf("%s = :%s", userColumn, ParamUserID)
	}

	data[ParamTenantID] = tenantID

	return fmt.Sprintf(`(%[1]s = :%[2]s OR (
		EXISTS (
			SELECT 1 FROM tenant_membership AS own
			WHERE own.user_id = %[1]s AND own.tenant_id = :%[3]s)
		AND NOT EXISTS (
			SELECT 1 FROM tenant_membership AS other
			WHERE other.user_id = %[1]s AND other.tenant_id <> :%[3]s)))`, userColumn, ParamUserID, ParamTenantID)
}

// CheckWrite validates the post-image of an insert or update: the row's
// tenant must be the caller's tenant. The service tier may write any tenant
// but never a row without one.
func CheckWrite(ac AccessContext, rowTenantID uuid.UUID) error {
	if rowTenantID == uuid.Nil {
		return fmt.Errorf("row has no tenant: %w", ErrAccessDenied)
	}

	if ac.IsService() {
		return nil
	}

	tenantID, ok := ac.TenantID()
	if !ok {
		return fmt.Errorf("no tenant in context: %w", ErrAccessDenied)
	}

	if tenantID != rowTenantID {
		return fmt.Errorf("row tenant mismatch: %w", ErrAccessDenied)
	}

	return nil
}
