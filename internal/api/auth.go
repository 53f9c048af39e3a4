package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/tenancy"
)

// Claims is the token issued by the identity service. The subject is the
// acting user id.
type Claims struct {
	ClinicID  string   `json:"clinic_id"`
	PatientID string   `json:"patient_id,omitempty"`
	Roles     []string `json:"roles"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token for the given session. Used by tooling and
// tests; production tokens come from the identity service.
func SignToken(secret string, s tenancy.Session, ttl time.Duration) (string, error) {
	roles := make([]string, 0, len(s.Roles))
	for _, r := range s.Roles {
		roles = append(roles, string(r))
	}
	claims := Claims{
		ClinicID: s.ClinicID.String(),
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	if s.PatientID != uuid.Nil {
		claims.PatientID = s.PatientID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseSession validates the bearer token and builds the tenant session.
func parseSession(secret, raw string) (tenancy.Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return tenancy.Session{}, errors.New("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return tenancy.Session{}, errors.New("invalid subject")
	}
	clinicID, err := uuid.Parse(claims.ClinicID)
	if err != nil || clinicID == uuid.Nil {
		return tenancy.Session{}, errors.New("invalid clinic")
	}

	s := tenancy.Session{UserID: userID, ClinicID: clinicID}
	for _, r := range claims.Roles {
		s.Roles = append(s.Roles, tenancy.ParseRole(r))
	}
	if claims.PatientID != "" {
		if s.PatientID, err = uuid.Parse(claims.PatientID); err != nil {
			return tenancy.Session{}, errors.New("invalid patient")
		}
	}
	return s, nil
}

// Authenticate requires a valid Bearer token and places the session on the
// request context.
func Authenticate(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, r, logger, apperr.Unauthorized("missing bearer token"))
				return
			}

			sess, err := parseSession(secret, strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				logger.Debug("rejected token",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Error(err),
				)
				writeError(w, r, logger, apperr.Unauthorized("invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(tenancy.WithSession(r.Context(), sess)))
		})
	}
}
