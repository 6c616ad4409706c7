// Package auth provides authentication support for the session tokens
// handed out at login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/userbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/role"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Set of error variables for authentication.
var (
	ErrKIDMissing   = errors.New("kid missing from token header")
	ErrKIDMalformed = errors.New("kid in token header is malformed")
	ErrUserDisabled = errors.New("user is disabled")
	ErrInvalidRole  = errors.New("token contains an invalid role")
)

// DefaultTTL is how long a session token stays valid.
const DefaultTTL = 8 * time.Hour

// Claims represents the authorization claims transmitted via a JWT. The
// subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id,omitempty"`
	Role     string `json:"role"`
}

// KeyLookup declares a method set of behavior for looking up
// private and public keys for JWT use.
type KeyLookup interface {
	PrivateKey(kid string) (key string, err error)
	PublicKey(kid string) (key string, err error)
}

// Config represents information required to initialize auth. UserBus and
// TenantBus are optional; without them tokens are trusted as issued.
type Config struct {
	Log       *logger.Logger
	UserBus   *userbus.Core
	TenantBus *tenantbus.Core
	KeyLookup KeyLookup
	Issuer    string
	TTL       time.Duration
}

// Auth is used to authenticate clients.
type Auth struct {
	log       *logger.Logger
	keyLookup KeyLookup
	userBus   *userbus.Core
	tenantBus *tenantbus.Core
	method    jwt.SigningMethod
	parser    *jwt.Parser
	issuer    string
	ttl       time.Duration
}

// New creates an Auth to support authentication.
func New(cfg Config) *Auth {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	return &Auth{
		log:       cfg.Log,
		keyLookup: cfg.KeyLookup,
		userBus:   cfg.UserBus,
		tenantBus: cfg.TenantBus,
		method:    jwt.GetSigningMethod(jwt.SigningMethodRS256.Name),
		parser:    jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name})),
		issuer:    cfg.Issuer,
		ttl:       ttl,
	}
}

// Issuer provides the configured issuer used to authenticate tokens.
func (a *Auth) Issuer() string {
	return a.issuer
}

// GenerateToken generates a signed JWT token string for the user. A nil
// tenant id produces a session without a tenant.
func (a *Auth) GenerateToken(kid string, tenantID uuid.UUID, userID uuid.UUID, r role.Role) (string, error) {
	var tid string
	if tenantID != uuid.Nil {
		tid = tenantID.String()
	}

	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    a.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID: tid,
		Role:     r.String(),
	}

	token := jwt.NewWithClaims(a.method, claims)
	token.Header["kid"] = kid

	privateKeyPEM, err := a.keyLookup.PrivateKey(kid)
	if err != nil {
		return "", fmt.Errorf("private key: %w", err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return "", fmt.Errorf("parsing private key from PEM: %w", err)
	}

	str, err := token.SignedString(privateKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return str, nil
}

// Authenticate processes the token to validate the sender's token is valid.
// When the session names a tenant the caller no longer belongs to, the tenant
// is dropped from the returned claims.
func (a *Auth) Authenticate(ctx context.Context, bearerToken string) (Claims, error) {
	parts := strings.Split(bearerToken, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return Claims{}, errors.New("expected authorization header format: Bearer <token>")
	}

	jwtUnverified := parts[1]

	var claims Claims
	token, _, err := a.parser.ParseUnverified(jwtUnverified, &claims)
	if err != nil {
		return Claims{}, fmt.Errorf("error parsing token: %w", err)
	}

	kidRaw, exists := token.Header["kid"]
	if !exists {
		return Claims{}, ErrKIDMissing
	}

	kid, ok := kidRaw.(string)
	if !ok {
		return Claims{}, ErrKIDMalformed
	}

	pem, err := a.keyLookup.PublicKey(kid)
	if err != nil {
		return Claims{}, fmt.Errorf("fetching public key for kid %q: %w", kid, err)
	}

	if err := a.verifySignatureAndClaims(jwtUnverified, pem); err != nil {
		a.log.Warn(ctx, "authenticate: failed", "security", true, "userID", claims.Subject, "ERROR", err)
		return Claims{}, fmt.Errorf("authentication failed: %w", err)
	}

	if _, err := role.Parse(claims.Role); err != nil {
		return Claims{}, ErrInvalidRole
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Claims{}, fmt.Errorf("parsing user ID %q from claims: %w", claims.Subject, err)
	}

	r, err := a.currentRole(ctx, userID)
	if err != nil {
		return Claims{}, fmt.Errorf("user not enabled: %w", err)
	}

	if r != "" {
		claims.Role = r
	}

	claims.TenantID = a.checkMembership(ctx, userID, claims.TenantID)

	return claims, nil
}

// currentRole checks the user is active in the database and returns the
// role stored there, so a demotion applies to sessions already issued. It
// returns an empty role when no user store is configured.
func (a *Auth) currentRole(ctx context.Context, userID uuid.UUID) (string, error) {
	if a.userBus == nil {
		return "", nil
	}

	usr, err := a.userBus.QueryByID(ctx, tenancy.New(uuid.Nil, userID), userID)
	if err != nil {
		return "", fmt.Errorf("query user: %w", err)
	}

	if !usr.Enabled {
		return "", ErrUserDisabled
	}

	return usr.Role.String(), nil
}

// checkMembership returns the tenant id when the user still belongs to it
// and an empty string otherwise.
func (a *Auth) checkMembership(ctx context.Context, userID uuid.UUID, tenantID string) string {
	if a.tenantBus == nil || tenantID == "" {
		return tenantID
	}

	tid, err := uuid.Parse(tenantID)
	if err != nil {
		return ""
	}

	if err := a.tenantBus.CheckAccess(ctx, userID, tid); err != nil {
		a.log.Warn(ctx, "authenticate: tenant dropped", "security", true, "userID", userID, "tenantID", tid, "ERROR", err)
		return ""
	}

	return tenantID
}

// verifySignatureAndClaims parses the token with the public key, validates
// the signature, and checks the issuer claim.
func (a *Auth) verifySignatureAndClaims(tokenStr, pemStr string) error {
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemStr))
	if err != nil {
		return fmt.Errorf("parsing public key: %w", err)
	}

	var claims Claims
	token, err := a.parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})

	if err != nil {
		return fmt.Errorf("validating token signature: %w", err)
	}

	if !token.Valid {
		return errors.New("token is invalid")
	}

	if claims.Issuer != a.issuer {
		return fmt.Errorf("invalid issuer: expected %q, got %q", a.issuer, claims.Issuer)
	}

	return nil
}
