package userbus

import (
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/types/name"
	"github.com/jcpaschoal/spi-agenda/business/types/role"
)

// User represents an account that can sign in. Users are not owned by a
// tenant; they reach tenants through memberships.
type User struct {
	ID           uuid.UUID
	Name         name.Name
	Email        mail.Address
	Role         role.Role
	PasswordHash []byte
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser contains information needed to create a new user.
type NewUser struct {
	Name     name.Name
	Email    mail.Address
	Role     role.Role
	Password string
}

// UpdateUser contains information needed to update a user.
type UpdateUser struct {
	Name     *name.Name
	Email    *mail.Address
	Role     *role.Role
	Password *string
	Enabled  *bool
}
