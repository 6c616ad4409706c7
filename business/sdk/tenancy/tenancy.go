// Package tenancy carries the resolved access context of a caller and the
// predicates every store conjuncts into its statements so rows never leave
// the tenant that owns them.
//
// There are four tiers. A user tier context is resolved from a signed
// session and may or may not carry a tenant. An anonymous context carries
// nothing, not even a tenant. A job context is a maintenance task confined to
// one tenant with no acting user. The service tier is reserved for trusted
// internal workers (the outbox dispatcher and the webhook inbox writer). Job
// and service contexts are never produced from a session credential.
package tenancy

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrAccessDenied is returned when a write targets a row outside the caller's
// tenant or the caller has no tenant at all.
var ErrAccessDenied = errors.New("access denied")

// Tier identifies how much of the data the context is allowed to reach.
type Tier int

// Set of tiers.
const (
	TierAnonymous Tier = iota
	TierUser
	TierJob
	TierService
)

func (t Tier) String() string {
	switch t {
	case TierUser:
		return "user"
	case TierJob:
		return "job"
	case TierService:
		return "service"
	default:
		return "anonymous"
	}
}

// AccessContext is the immutable identity of a caller. The zero value is an
// anonymous context that can see nothing.
type AccessContext struct {
	tenantID  uuid.UUID
	userID    uuid.UUID
	hasTenant bool
	hasUser   bool
	tier      Tier
}

// Resolve builds a context from the raw identifiers found in a credential.
// A missing or unparsable identifier leaves that field absent; it is never
// replaced by a default. Without a user the result is anonymous and the
// tenant is dropped.
func Resolve(tenantID string, userID string) AccessContext {
	tid, err := uuid.Parse(tenantID)
	if err != nil {
		tid = uuid.Nil
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		uid = uuid.Nil
	}

	return New(tid, uid)
}

// New builds a user tier context from already parsed identifiers. uuid.Nil
// means absent. Without a user the result is anonymous and the tenant is
// dropped.
func New(tenantID uuid.UUID, userID uuid.UUID) AccessContext {
	if userID == uuid.Nil {
		return AccessContext{}
	}

	return AccessContext{
		tenantID:  tenantID,
		userID:    userID,
		hasTenant: tenantID != uuid.Nil,
		hasUser:   true,
		tier:      TierUser,
	}
}

// Job returns the context of a maintenance task acting inside one tenant.
// It sees only that tenant's rows and records no actor.
func Job(tenantID uuid.UUID) AccessContext {
	if tenantID == uuid.Nil {
		return AccessContext{}
	}

	return AccessContext{
		tenantID:  tenantID,
		hasTenant: true,
		tier:      TierJob,
	}
}

// Service returns the context used by trusted internal workers. It bypasses
// the tenant predicate entirely and records no actor.
func Service() AccessContext {
	return AccessContext{tier: TierService}
}

// TenantID returns the tenant of the caller and whether it is present.
func (ac AccessContext) TenantID() (uuid.UUID, bool) {
	return ac.tenantID, ac.hasTenant
}

// UserID returns the user of the caller and whether it is present.
func (ac AccessContext) UserID() (uuid.UUID, bool) {
	return ac.userID, ac.hasUser
}

// Tier returns the tier of the context.
func (ac AccessContext) Tier() Tier {
	return ac.tier
}

// IsService reports whether the context belongs to an internal worker.
func (ac AccessContext) IsService() bool {
	return ac.tier == TierService
}

// Actor returns the acting user for audit purposes, or nil for system
// initiated changes.
func (ac AccessContext) Actor() *uuid.UUID {
	if !ac.hasUser || ac.tier == TierService {
		return nil
	}

	id := ac.userID
	return &id
}

// RequireTenant returns the caller's tenant or ErrAccessDenied.
func (ac AccessContext) RequireTenant() (uuid.UUID, error) {
	if !ac.hasTenant {
		return uuid.Nil, ErrAccessDenied
	}

	return ac.tenantID, nil
}

// String implements the fmt.Stringer interface for logging.
func (ac AccessContext) String() string {
	tenant := "-"
	if ac.hasTenant {
		tenant = ac.tenantID.String()
	}

	user := "-"
	if ac.hasUser {
		user = ac.userID.String()
	}

	return fmt.Sprintf("tier=%s tenant=%s user=%s", ac.tier, tenant, user)
}
