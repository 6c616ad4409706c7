package authapp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/auth"
	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
)

// Token is the session handed out at login.
type Token struct {
	Token    string `json:"token"`
	TenantID string `json:"tenant_id,omitempty"`
}

// Encode implements the web.Encoder interface.
func (t Token) Encode() ([]byte, string, error) {
	data, err := json.Marshal(t)
	return data, "application/json", err
}

func toAppToken(token string, tenantID uuid.UUID) Token {
	t := Token{
		Token: token,
	}

	if tenantID != uuid.Nil {
		t.TenantID = tenantID.String()
	}

	return t
}

// Session describes an authenticated token.
type Session struct {
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id,omitempty"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// Encode implements the web.Encoder interface.
func (s Session) Encode() ([]byte, string, error) {
	data, err := json.Marshal(s)
	return data, "application/json", err
}

func toAppSession(c auth.Claims) Session {
	s := Session{
		UserID:   c.Subject,
		TenantID: c.TenantID,
		Role:     c.Role,
	}

	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.UTC().Format(time.RFC3339)
	}

	return s
}

// Login holds the credentials. Tenant selects among the user's tenants and
// is only required when there is more than one.
type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Tenant   string `json:"tenant" validate:"omitempty,uuid"`
}

// Decode implements the web.Decoder interface.
func (app *Login) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app Login) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}
