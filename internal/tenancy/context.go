package tenancy

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

type Role string

const (
	RoleSuperAdmin  Role = "SUPER_ADMIN"
	RoleClinicAdmin Role = "ADMIN"
	RoleDoctor      Role = "DOCTOR"
	RoleReception   Role = "RECEPTIONIST"
	RoleAccountant  Role = "ACCOUNTANT"
	RoleLaboratory  Role = "LABORATORY"
	RoleRadiology   Role = "RADIOLOGY"
	RolePharmacy    Role = "PHARMACY"
	RolePatient     Role = "PATIENT"
)

// ParseRole normalizes role names coming from tokens.
func ParseRole(raw string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(raw)))
}

// Session is the acting identity for a request. It is supplied by the
// identity collaborator and never built from request bodies.
type Session struct {
	UserID    uuid.UUID
	ClinicID  uuid.UUID
	PatientID uuid.UUID // set for patient sessions
	Roles     []Role
}

func (s Session) HasRole(role Role) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Can reports whether any of the session's roles grants capability c.
func (s Session) Can(c Capability) bool {
	for _, r := range s.Roles {
		if grants[r][c] {
			return true
		}
	}
	return false
}

// Require returns a forbidden error unless the session holds c.
func (s Session) Require(c Capability) error {
	if !s.Can(c) {
		return apperr.Forbidden("missing capability " + string(c))
	}
	return nil
}

type ctxKey string

const sessionKey ctxKey = "clinic.session"

// WithSession stores the acting session in context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext extracts the session if present.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok && s.ClinicID != uuid.Nil
}

// MustSession returns the session or an unauthorized error. Every scoped
// operation starts here, so clinic identity always comes from the session.
func MustSession(ctx context.Context) (Session, error) {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return Session{}, apperr.Unauthorized("no clinic session")
	}
	return s, nil
}
